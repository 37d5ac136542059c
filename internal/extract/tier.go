// Package extract implements the tiered resolution strategies. Every tier
// satisfies the same Extractor interface and reports failure as an OK=false
// result; errors and panics never cross the tier boundary.
package extract

import (
	"context"
	"time"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
)

// Extractor is one resolution strategy. Implementations must be safe to call
// with any document, including empty or malformed ones.
type Extractor interface {
	Name() string
	Tier() int
	Extract(ctx context.Context, doc *dom.Document) *model.ExtractionResult
}

var timeNow = time.Now

// minUsableScore is the parser score below which a match is not worth
// reporting; anything under it maps to a NONE confidence anyway.
const minUsableScore = 40

// match pairs a DOM node with its parsed monetary value.
type match struct {
	node  *dom.Node
	parse money.ParseResult
}

// firstMatch resolves a selector and returns the first visible, non-widget,
// non-struck-through node whose text parses to a usable price. A compile
// error is returned so callers can skip to the next candidate selector.
func firstMatch(doc *dom.Document, selector string, opts money.Options) (*match, error) {
	nodes, err := doc.Query(selector)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.InOwnWidget() || !n.Visible() || n.Strikethrough() {
			continue
		}
		text := n.Text()
		if !money.LooksLikePrice(text) {
			continue
		}
		pr := money.Parse(text, opts)
		if pr.Money == nil || pr.Confidence < minUsableScore {
			continue
		}
		return &match{node: n, parse: pr}, nil
	}
	return nil, nil
}

// resultFromMatch builds the success envelope shared by the selector-driven
// tiers.
func resultFromMatch(doc *dom.Document, m *match, selector, method string, tier int) *model.ExtractionResult {
	value := &model.PriceBreakdown{
		IsFromPrice: m.parse.IsFromPrice,
		IsPerPerson: m.parse.IsPerPerson,
	}
	if m.parse.IsPerNight {
		value.PerNight = m.parse.Money
	} else {
		value.Total = m.parse.Money
	}
	return &model.ExtractionResult{
		OK:         true,
		Value:      value,
		Confidence: model.ConfidenceFromScore(m.parse.Confidence),
		Method:     method,
		Tier:       tier,
		Evidence: &model.Evidence{
			MatchedText:     m.node.Text(),
			NormalizedValue: m.parse.Money.Amount,
			Selector:        selector,
			DOMPath:         m.node.Path(),
			URL:             doc.URL(),
			Hostname:        doc.Hostname(),
			LabelText:       m.node.LabelText(),
			Warnings:        m.parse.Warnings,
		},
	}
}

// failure builds the OK=false envelope with whatever evidence was gathered.
func failure(doc *dom.Document, method string, tier int, errs []string) *model.ExtractionResult {
	return &model.ExtractionResult{
		OK:         false,
		Confidence: model.ConfidenceNone,
		Method:     method,
		Tier:       tier,
		Evidence: &model.Evidence{
			URL:      doc.URL(),
			Hostname: doc.Hostname(),
		},
		Errors: errs,
	}
}

func finish(res *model.ExtractionResult, start time.Time) *model.ExtractionResult {
	res.LatencyMs = time.Since(start).Milliseconds()
	return res
}
