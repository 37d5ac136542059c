// Package llm is the opt-in, model-backed last-resort tier. It sends a
// compact text rendition of the page's price-looking regions to a model and
// asks for a structured answer. Everything about it fails quietly: a bad
// response is just a failed tier, never an error the caller has to handle.
package llm

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

const defaultMaxTokens = 512

// Client is the one completion call the extractor needs, kept narrow so tests
// can stub it.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// anthropicClient implements Client over the official SDK.
type anthropicClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewAnthropicClient creates a Client backed by the Anthropic API. An empty
// model selects DefaultModel.
func NewAnthropicClient(apiKey, model string) Client {
	if model == "" {
		model = DefaultModel
	}
	return &anthropicClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

func (c *anthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "llm: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
