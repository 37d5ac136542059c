package registry

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/store"
)

// selectorStat is the persisted per-(host, selector) hit history.
type selectorStat struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// Stats orders a host's configured selectors by historical success. It is a
// read-modify-write view over one whole blob, like every shared collection
// in this module.
type Stats struct {
	store store.Store
}

// NewStats creates a Stats view over the given store.
func NewStats(st store.Store) *Stats {
	return &Stats{store: st}
}

func (s *Stats) load(ctx context.Context) (map[string]map[string]selectorStat, error) {
	raw, err := s.store.Get(ctx, store.KeySelectorStats)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load selector stats")
	}
	stats := make(map[string]map[string]selectorStat)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stats); err != nil {
			return nil, eris.Wrap(err, "registry: decode selector stats")
		}
	}
	return stats, nil
}

// Record notes one hit or miss for a selector on a host. Storage failures are
// logged and swallowed: statistics are an optimization, never a dependency.
func (s *Stats) Record(ctx context.Context, hostname, selector string, hit bool) {
	stats, err := s.load(ctx)
	if err != nil {
		zap.L().Debug("registry: selector stats unavailable", zap.Error(err))
		return
	}
	if stats[hostname] == nil {
		stats[hostname] = make(map[string]selectorStat)
	}
	st := stats[hostname][selector]
	if hit {
		st.Hits++
	} else {
		st.Misses++
	}
	stats[hostname][selector] = st

	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, store.KeySelectorStats, raw); err != nil {
		zap.L().Debug("registry: persist selector stats failed", zap.Error(err))
	}
}

// Order sorts selectors for a host by net historical success, best first.
// The sort is stable so unproven selectors keep their configured order.
func (s *Stats) Order(ctx context.Context, hostname string, selectors []string) []string {
	if len(selectors) < 2 {
		return selectors
	}
	stats, err := s.load(ctx)
	if err != nil {
		zap.L().Debug("registry: selector stats unavailable", zap.Error(err))
		return selectors
	}
	hostStats := stats[hostname]
	if len(hostStats) == 0 {
		return selectors
	}

	out := make([]string, len(selectors))
	copy(out, selectors)
	score := func(sel string) int {
		st := hostStats[sel]
		return st.Hits - st.Misses
	}
	sort.SliceStable(out, func(i, j int) bool {
		return score(out[i]) > score(out[j])
	})
	return out
}
