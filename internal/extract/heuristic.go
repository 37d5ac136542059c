package extract

import (
	"context"
	"math"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
)

// Scoring weights for tier 3. The parse score dominates, so any cleanly
// parsed price clears the usable threshold on its own; prominence and label
// context reorder candidates and push standouts into the higher bands.
const (
	parseScoreWeight = 0.75

	labelKeywordBonus = 25
	largeFontBonus    = 10 // >= largeFontPx
	mediumFontBonus   = 5  // >= mediumFontPx
	boldBonus         = 5
	longTextPenalty   = 5  // > longTextChars
	hugeTextPenalty   = 15 // > hugeTextChars

	largeFontPx  = 20
	mediumFontPx = 16

	longTextChars = 50
	hugeTextChars = 120

	maxCandidateEvidence = 5
	maxExcerptChars      = 80
)

var totalLabelRe = regexp.MustCompile(`(?i)\b(total|due|amount payable|you pay)\b`)

// HeuristicExtractor is tier 3: score every visible price-looking element by
// parseability, prominence, and label context, and take the best one.
type HeuristicExtractor struct {
	opts money.Options
	log  *zap.Logger
}

// NewHeuristicExtractor builds the tier-3 extractor.
func NewHeuristicExtractor(opts money.Options) *HeuristicExtractor {
	return &HeuristicExtractor{
		opts: opts,
		log:  zap.L().With(zap.String("component", "extract.heuristic")),
	}
}

func (e *HeuristicExtractor) Name() string { return "heuristic" }
func (e *HeuristicExtractor) Tier() int    { return 3 }

type scoredCandidate struct {
	match
	score float64
}

// Extract scans the visible tree. An empty page or one with no price-looking
// text is a normal failure, not an error.
func (e *HeuristicExtractor) Extract(ctx context.Context, doc *dom.Document) *model.ExtractionResult {
	start := timeNow()

	var candidates []scoredCandidate
	for _, n := range doc.VisibleCandidates() {
		if ctx.Err() != nil {
			break
		}
		if n.Strikethrough() {
			continue
		}
		text := n.Text()
		if !money.LooksLikePrice(text) {
			continue
		}
		pr := money.Parse(text, e.opts)
		if pr.Money == nil {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			match: match{node: n, parse: pr},
			score: e.score(n, text, pr),
		})
	}

	if len(candidates) == 0 {
		return finish(failure(doc, model.MethodHeuristic, 3, []string{"no price-like candidates on page"}), start)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	evidence := candidateEvidence(candidates)

	best := candidates[0]
	if best.score < minUsableScore {
		res := failure(doc, model.MethodHeuristic, 3, []string{"no candidate scored above threshold"})
		res.Evidence.CandidateScores = evidence
		return finish(res, start)
	}

	res := resultFromMatch(doc, &best.match, "", model.MethodHeuristic, 3)
	res.Confidence = model.ConfidenceFromScore(best.score)
	res.Evidence.CandidateScores = evidence
	return finish(res, start)
}

// score combines the parse score with prominence signals, clamped to 0-100.
func (e *HeuristicExtractor) score(n *dom.Node, text string, pr money.ParseResult) float64 {
	score := pr.Confidence * parseScoreWeight

	label := n.LabelText()
	if totalLabelRe.MatchString(label) || totalLabelRe.MatchString(text) {
		score += labelKeywordBonus
	}

	switch px := n.FontSizePx(); {
	case px >= largeFontPx:
		score += largeFontBonus
	case px >= mediumFontPx:
		score += mediumFontBonus
	}
	if n.Bold() {
		score += boldBonus
	}

	switch {
	case len(text) > hugeTextChars:
		score -= hugeTextPenalty
	case len(text) > longTextChars:
		score -= longTextPenalty
	}

	return math.Max(0, math.Min(100, score))
}

func candidateEvidence(candidates []scoredCandidate) []model.CandidateScore {
	limit := len(candidates)
	if limit > maxCandidateEvidence {
		limit = maxCandidateEvidence
	}
	out := make([]model.CandidateScore, 0, limit)
	for _, c := range candidates[:limit] {
		excerpt := c.node.Text()
		if len(excerpt) > maxExcerptChars {
			excerpt = excerpt[:maxExcerptChars]
		}
		out = append(out, model.CandidateScore{
			Excerpt:  excerpt,
			Selector: c.node.Path(),
			Score:    c.score,
		})
	}
	return out
}
