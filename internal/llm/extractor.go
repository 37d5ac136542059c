package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
)

const (
	// maxExcerptChars bounds the page text sent to the model.
	maxExcerptChars = 4000
	maxLineChars    = 160
)

const systemPrompt = `You identify the final booking total on travel checkout pages.
Given labeled text snippets from a page, answer with only a JSON object:
{"amount": <number>, "currency": "<ISO 4217 code>", "is_total": <bool>, "confidence": "high"|"medium"|"low"}
Pick the grand total the customer will pay, never a per-night, per-person, or crossed-out price.
If no total is present, answer {"amount": 0, "currency": "", "is_total": false, "confidence": "low"}.`

// answer is the JSON shape the model is instructed to return.
type answer struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	IsTotal    bool    `json:"is_total"`
	Confidence string  `json:"confidence"`
}

// Extractor is the tier-5 extractor. It satisfies the same interface as the
// deterministic tiers and is only consulted when explicitly enabled.
type Extractor struct {
	client Client
	opts   money.Options
	log    *zap.Logger
}

// NewExtractor builds the model-backed extractor.
func NewExtractor(client Client, opts money.Options) *Extractor {
	return &Extractor{
		client: client,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "extract.llm")),
	}
}

func (e *Extractor) Name() string { return "llm" }
func (e *Extractor) Tier() int    { return 5 }

// Extract asks the model about the page's price-looking regions. Any failure
// — transport, refusal, malformed JSON, implausible value — is a quiet
// OK=false result.
func (e *Extractor) Extract(ctx context.Context, doc *dom.Document) *model.ExtractionResult {
	fail := func(msg string) *model.ExtractionResult {
		return &model.ExtractionResult{
			Confidence: model.ConfidenceNone,
			Method:     model.MethodLLM,
			Tier:       5,
			Evidence:   &model.Evidence{URL: doc.URL(), Hostname: doc.Hostname()},
			Errors:     []string{msg},
		}
	}

	excerpt := pageExcerpt(doc)
	if excerpt == "" {
		return fail("no price-like text to send")
	}

	raw, err := e.client.Complete(ctx, systemPrompt, excerpt)
	if err != nil {
		e.log.Debug("completion failed", zap.Error(err))
		return fail("model unavailable: " + err.Error())
	}

	var ans answer
	if err := json.Unmarshal([]byte(stripFences(raw)), &ans); err != nil {
		e.log.Debug("unparseable model answer", zap.String("raw", raw))
		return fail("unparseable model answer")
	}
	if !ans.IsTotal || ans.Amount <= 0 || !money.ValidCode(ans.Currency) {
		return fail("model found no usable total")
	}

	conf := model.ConfidenceLow
	if ans.Confidence == "high" || ans.Confidence == "medium" {
		// Model answers are capped below the deterministic tiers' ceiling.
		conf = model.ConfidenceMedium
	}

	return &model.ExtractionResult{
		OK:         true,
		Value:      &model.PriceBreakdown{Total: &model.Money{Amount: ans.Amount, Currency: ans.Currency}},
		Confidence: conf,
		Method:     model.MethodLLM,
		Tier:       5,
		Evidence: &model.Evidence{
			NormalizedValue: ans.Amount,
			URL:             doc.URL(),
			Hostname:        doc.Hostname(),
		},
	}
}

// pageExcerpt renders the page's visible price-looking elements as labeled
// lines, bounded in size.
func pageExcerpt(doc *dom.Document) string {
	var b strings.Builder
	for _, n := range doc.VisibleCandidates() {
		text := n.Text()
		if !money.LooksLikePrice(text) {
			continue
		}
		if len(text) > maxLineChars {
			text = text[:maxLineChars]
		}
		line := text
		if label := n.LabelText(); label != "" {
			line = fmt.Sprintf("%s: %s", label, text)
		}
		if n.Strikethrough() {
			line += " [struck through]"
		}
		if b.Len()+len(line)+1 > maxExcerptChars {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// stripFences removes a markdown code fence around a JSON answer.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
