package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
	"github.com/sells-group/price-sentry/internal/override"
	"github.com/sells-group/price-sentry/internal/registry"
)

// SiteExtractor is tier 1: user overrides first, then the host's configured
// primary selectors ordered by historical success, then its fallback
// selectors at reduced confidence.
type SiteExtractor struct {
	registry  *registry.Registry
	stats     *registry.Stats
	overrides *override.Store
	opts      money.Options
	log       *zap.Logger
}

// NewSiteExtractor builds the tier-1 extractor. stats and overrides may be
// nil; the corresponding steps are skipped.
func NewSiteExtractor(reg *registry.Registry, stats *registry.Stats, ovs *override.Store, opts money.Options) *SiteExtractor {
	return &SiteExtractor{
		registry:  reg,
		stats:     stats,
		overrides: ovs,
		opts:      opts,
		log:       zap.L().With(zap.String("component", "extract.site")),
	}
}

func (e *SiteExtractor) Name() string { return "site-selector" }
func (e *SiteExtractor) Tier() int    { return 1 }

// Extract runs the tier-1 cascade. Override hits are reported at full
// parse-derived confidence; fallback hits are downgraded one level because
// fallback selectors are broader by design.
func (e *SiteExtractor) Extract(ctx context.Context, doc *dom.Document) *model.ExtractionResult {
	start := timeNow()
	host := doc.Hostname()
	var errs []string

	if res := e.tryOverrides(ctx, doc, host); res != nil {
		return finish(res, start)
	}

	site := e.registry.ForHost(host)

	primary := site.Primary
	if e.stats != nil {
		primary = e.stats.Order(ctx, host, primary)
	}
	for _, sel := range primary {
		if ctx.Err() != nil {
			break
		}
		m, err := firstMatch(doc, sel, e.opts)
		if err != nil {
			errs = append(errs, err.Error())
			e.log.Debug("selector failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if e.stats != nil && host != "" {
			e.stats.Record(ctx, host, sel, m != nil)
		}
		if m == nil {
			continue
		}
		return finish(resultFromMatch(doc, m, sel, model.MethodSiteSelector, 1), start)
	}

	for _, sel := range site.Fallback {
		if ctx.Err() != nil {
			break
		}
		m, err := firstMatch(doc, sel, e.opts)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if m == nil {
			continue
		}
		res := resultFromMatch(doc, m, sel, model.MethodSiteSelector, 1)
		res.Confidence = res.Confidence.Downgrade()
		if res.Confidence == model.ConfidenceNone {
			continue
		}
		return finish(res, start)
	}

	if len(errs) == 0 {
		errs = []string{"no configured selector matched"}
	}
	return finish(failure(doc, model.MethodSiteSelector, 1, errs), start)
}

// tryOverrides replays stored user overrides, most successful first, and
// keeps their replay counters current. Override results keep their full
// parse-derived confidence; a user pointed at this exact element.
func (e *SiteExtractor) tryOverrides(ctx context.Context, doc *dom.Document, host string) *model.ExtractionResult {
	if e.overrides == nil || host == "" {
		return nil
	}
	ovs, err := e.overrides.ForHost(ctx, host)
	if err != nil {
		e.log.Debug("overrides unavailable", zap.Error(err))
		return nil
	}
	for _, ov := range ovs {
		if ov.Field != model.FieldTotalPrice {
			continue
		}
		for _, sel := range ov.Selectors {
			if ctx.Err() != nil {
				return nil
			}
			m, err := firstMatch(doc, sel, e.opts)
			if err != nil || m == nil {
				continue
			}
			if err := e.overrides.RecordResult(ctx, host, ov.PageType, ov.Field, true); err != nil {
				e.log.Debug("override counter update failed", zap.Error(err))
			}
			res := resultFromMatch(doc, m, sel, model.MethodSiteSelector, 1)
			res.Evidence.FromOverride = true
			return res
		}
		if err := e.overrides.RecordResult(ctx, host, ov.PageType, ov.Field, false); err != nil {
			e.log.Debug("override counter update failed", zap.Error(err))
		}
	}
	return nil
}
