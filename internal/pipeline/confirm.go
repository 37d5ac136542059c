package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
)

// ConfirmSelection records a user pointing at the correct price element. The
// confirmed value is returned at high confidence and, when an override store
// is attached, a ranked set of selectors for the element is persisted so tier
// 1 can replay the choice on future visits.
//
// Unlike Run, confirmation returns errors: the user is present and can act
// on "that element has no price in it".
func (p *Pipeline) ConfirmSelection(ctx context.Context, doc *dom.Document, selector, pageType string) (*model.ExtractionResult, error) {
	if doc == nil {
		return nil, eris.New("pipeline: no document")
	}
	nodes, err := doc.Query(selector)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: confirm selection")
	}

	var node *dom.Node
	for _, n := range nodes {
		if n.Visible() && !n.InOwnWidget() {
			node = n
			break
		}
	}
	if node == nil {
		return nil, eris.Errorf("pipeline: selector %q matched no visible element", selector)
	}

	text := node.Text()
	pr := money.Parse(text, p.parseOpts)
	if pr.Money == nil {
		return nil, eris.Errorf("pipeline: confirmed element %q contains no parseable price", selector)
	}

	value := &model.PriceBreakdown{
		IsFromPrice: pr.IsFromPrice,
		IsPerPerson: pr.IsPerPerson,
	}
	if pr.IsPerNight {
		value.PerNight = pr.Money
	} else {
		value.Total = pr.Money
	}

	res := &model.ExtractionResult{
		OK:         true,
		Value:      value,
		Confidence: model.ConfidenceHigh,
		Method:     model.MethodUserConfirmed,
		Tier:       4,
		Evidence: &model.Evidence{
			MatchedText:     text,
			NormalizedValue: pr.Money.Amount,
			Selector:        selector,
			DOMPath:         node.Path(),
			URL:             doc.URL(),
			Hostname:        doc.Hostname(),
			LabelText:       node.LabelText(),
			Warnings:        pr.Warnings,
		},
	}

	if p.overrides != nil && doc.Hostname() != "" {
		ov := model.UserOverride{
			Hostname:  doc.Hostname(),
			PageType:  pageType,
			Field:     model.FieldTotalPrice,
			Selectors: node.SelectorCandidates(),
			LastValue: fmt.Sprintf("%.2f %s", pr.Money.Amount, pr.Money.Currency),
		}
		if err := p.overrides.Save(ctx, ov); err != nil {
			// The confirmation itself stands even if persistence fails.
			p.log.Warn("override persistence failed", zap.Error(err))
		}
	}

	p.record(ctx, doc, &Result{Final: res})
	return res, nil
}
