// Package pipeline orchestrates the extraction tiers. Run is the one entry
// point: it walks the tiers in ascending order, stops early on a
// high-confidence hit, merges everything else by confidence, and reports
// failure as a result, never as an error or a panic.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/extract"
	"github.com/sells-group/price-sentry/internal/health"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
	"github.com/sells-group/price-sentry/internal/override"
)

// Pipeline wires the tiers to their shared infrastructure.
type Pipeline struct {
	tiers     []extract.Extractor
	llm       extract.Extractor
	health    *health.Monitor
	overrides *override.Store
	parseOpts money.Options
	log       *zap.Logger
}

// New builds a pipeline over the given tiers, kept in ascending tier order.
func New(tiers ...extract.Extractor) *Pipeline {
	ordered := slices.Clone(tiers)
	slices.SortStableFunc(ordered, func(a, b extract.Extractor) int {
		return a.Tier() - b.Tier()
	})
	return &Pipeline{
		tiers: ordered,
		log:   zap.L().With(zap.String("component", "pipeline")),
	}
}

// WithHealth attaches the extraction event monitor.
func (p *Pipeline) WithHealth(m *health.Monitor) *Pipeline {
	p.health = m
	return p
}

// WithOverrides attaches the user-override store used by ConfirmSelection.
func (p *Pipeline) WithOverrides(s *override.Store) *Pipeline {
	p.overrides = s
	return p
}

// WithLLM attaches the opt-in model-backed extractor, run only when
// Options.UseLLM is set and no deterministic tier produced an acceptable
// result.
func (p *Pipeline) WithLLM(e extract.Extractor) *Pipeline {
	p.llm = e
	return p
}

// WithParseOptions sets the money parsing options used by ConfirmSelection.
func (p *Pipeline) WithParseOptions(o money.Options) *Pipeline {
	p.parseOpts = o
	return p
}

// Options tunes one Run.
type Options struct {
	// ForceTier runs exactly one tier, for debugging.
	ForceTier int
	// SkipTiers excludes tiers from the cascade.
	SkipTiers []int
	// MinConfidence discards results weaker than this level. Empty means any
	// usable confidence wins.
	MinConfidence model.Confidence
	// UseLLM enables the model-backed tier, if one is attached.
	UseLLM bool
}

// Result is the full outcome of one Run: the winning result plus the
// per-tier attempts behind it.
type Result struct {
	Final          *model.ExtractionResult         `json:"final"`
	TiersAttempted []int                           `json:"tiers_attempted"`
	WinningTier    int                             `json:"winning_tier"`
	ByTier         map[int]*model.ExtractionResult `json:"by_tier,omitempty"`
}

// Run executes the cascade over one document. It always returns a Result
// with a non-nil Final.
func (p *Pipeline) Run(ctx context.Context, doc *dom.Document, opts Options) *Result {
	start := time.Now()
	res := &Result{ByTier: make(map[int]*model.ExtractionResult)}

	if doc == nil {
		res.Final = &model.ExtractionResult{
			Confidence: model.ConfidenceNone,
			Method:     model.MethodNone,
			Errors:     []string{"no document"},
		}
		return res
	}

	var best *model.ExtractionResult
	for _, tier := range p.selectTiers(opts) {
		if ctx.Err() != nil {
			break
		}
		r := p.runTier(ctx, tier, doc)
		res.TiersAttempted = append(res.TiersAttempted, tier.Tier())
		res.ByTier[tier.Tier()] = r

		if !usable(r, opts.MinConfidence) {
			continue
		}
		if model.BetterResult(r, best) {
			best = r
		}
		if r.Confidence == model.ConfidenceHigh {
			break
		}
	}

	// The model-backed tier is a paid external call: it runs last, and only
	// when the deterministic tiers produced nothing acceptable.
	if best == nil && p.llmSelected(opts) && ctx.Err() == nil {
		r := p.runTier(ctx, p.llm, doc)
		res.TiersAttempted = append(res.TiersAttempted, p.llm.Tier())
		res.ByTier[p.llm.Tier()] = r
		if usable(r, opts.MinConfidence) {
			best = r
		}
	}

	if best != nil {
		res.Final = best
		res.WinningTier = best.Tier
	} else {
		res.Final = p.aggregateFailure(doc, res)
	}

	res.Final.LatencyMs = time.Since(start).Milliseconds()
	p.record(ctx, doc, res)
	return res
}

// usable reports whether a tier result can win the run.
func usable(r *model.ExtractionResult, minConfidence model.Confidence) bool {
	if r == nil || !r.OK || r.Confidence == model.ConfidenceNone {
		return false
	}
	return minConfidence == "" || r.Confidence.AtLeast(minConfidence)
}

// selectTiers applies ForceTier/SkipTiers to the deterministic tiers.
func (p *Pipeline) selectTiers(opts Options) []extract.Extractor {
	var out []extract.Extractor
	for _, t := range p.tiers {
		if opts.ForceTier != 0 && t.Tier() != opts.ForceTier {
			continue
		}
		if slices.Contains(opts.SkipTiers, t.Tier()) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// llmSelected reports whether the model-backed tier survives this run's
// opt-in, force, and skip filters.
func (p *Pipeline) llmSelected(opts Options) bool {
	if !opts.UseLLM || p.llm == nil {
		return false
	}
	if opts.ForceTier != 0 && opts.ForceTier != p.llm.Tier() {
		return false
	}
	return !slices.Contains(opts.SkipTiers, p.llm.Tier())
}

// runTier isolates one tier: a panicking extractor is converted into a
// failed result so the cascade keeps going.
func (p *Pipeline) runTier(ctx context.Context, e extract.Extractor, doc *dom.Document) (res *model.ExtractionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("tier panicked",
				zap.String("extractor", e.Name()),
				zap.Int("tier", e.Tier()),
				zap.Any("panic", r))
			res = &model.ExtractionResult{
				Confidence: model.ConfidenceNone,
				Method:     model.MethodNone,
				Tier:       e.Tier(),
				Errors:     []string{fmt.Sprintf("tier %d panic: %v", e.Tier(), r)},
				LatencyMs:  time.Since(start).Milliseconds(),
			}
		}
	}()

	res = e.Extract(ctx, doc)
	if res == nil {
		res = &model.ExtractionResult{
			Confidence: model.ConfidenceNone,
			Method:     model.MethodNone,
			Tier:       e.Tier(),
			Errors:     []string{"extractor returned no result"},
		}
	}
	return res
}

// aggregateFailure folds every tier's errors into one failed result.
func (p *Pipeline) aggregateFailure(doc *dom.Document, res *Result) *model.ExtractionResult {
	var errs []string
	for _, tier := range res.TiersAttempted {
		r := res.ByTier[tier]
		if r == nil {
			continue
		}
		for _, e := range r.Errors {
			errs = append(errs, fmt.Sprintf("tier %d: %s", tier, e))
		}
	}
	if len(errs) == 0 {
		errs = []string{"no tier produced a usable result"}
	}
	return &model.ExtractionResult{
		Confidence: model.ConfidenceNone,
		Method:     model.MethodNone,
		Evidence: &model.Evidence{
			URL:      doc.URL(),
			Hostname: doc.Hostname(),
		},
		Errors: errs,
	}
}

// record files the run outcome with the health monitor.
func (p *Pipeline) record(ctx context.Context, doc *dom.Document, res *Result) {
	if p.health == nil || doc.Hostname() == "" {
		return
	}
	final := res.Final
	p.health.Record(ctx, model.ExtractionEvent{
		Hostname:   doc.Hostname(),
		Success:    final.OK,
		Confidence: final.Confidence,
		Method:     final.Method,
		Tier:       final.Tier,
		LatencyMs:  final.LatencyMs,
		Errors:     final.Errors,
	})
}
