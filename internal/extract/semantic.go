package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
	"github.com/sells-group/price-sentry/internal/registry"
)

// SemanticExtractor is tier 2: markup that names its own purpose. It tries
// the host's configured semantic hints, then the cross-site generic list.
type SemanticExtractor struct {
	registry *registry.Registry
	opts     money.Options
	log      *zap.Logger
}

// NewSemanticExtractor builds the tier-2 extractor.
func NewSemanticExtractor(reg *registry.Registry, opts money.Options) *SemanticExtractor {
	return &SemanticExtractor{
		registry: reg,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "extract.semantic")),
	}
}

func (e *SemanticExtractor) Name() string { return "semantic" }
func (e *SemanticExtractor) Tier() int    { return 2 }

// Extract walks the semantic selector lists in order and takes the first
// usable match. Confidence comes straight from the parse score: semantic
// markup that parses cleanly is trustworthy on its own.
func (e *SemanticExtractor) Extract(ctx context.Context, doc *dom.Document) *model.ExtractionResult {
	start := timeNow()
	var errs []string

	site := e.registry.ForHost(doc.Hostname())
	selectors := append(append([]string(nil), site.Semantic...), e.registry.Generic()...)

	for _, sel := range selectors {
		if ctx.Err() != nil {
			break
		}
		m, err := firstMatch(doc, sel, e.opts)
		if err != nil {
			errs = append(errs, err.Error())
			e.log.Debug("selector failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if m == nil {
			continue
		}
		return finish(resultFromMatch(doc, m, sel, model.MethodSemantic, 2), start)
	}

	if len(errs) == 0 {
		errs = []string{"no semantic markup matched"}
	}
	return finish(failure(doc, model.MethodSemantic, 2, errs), start)
}
