// Package override persists user-confirmed selector mappings and replays
// them ahead of the generic registry. Overrides are ground truth until a site
// redesign breaks them, at which point their failure counters push them down.
package override

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/store"
)

// DefaultMaxPerHost caps stored overrides per hostname; eviction removes the
// least-recently-updated entry.
const DefaultMaxPerHost = 10

// Store is the persisted override collection, one whole blob keyed by
// hostname.
type Store struct {
	store      store.Store
	maxPerHost int
	now        func() time.Time
}

// NewStore creates an override store with the default per-host cap.
func NewStore(st store.Store) *Store {
	return &Store{store: st, maxPerHost: DefaultMaxPerHost, now: time.Now}
}

// WithMaxPerHost overrides the per-host cap.
func (s *Store) WithMaxPerHost(n int) *Store {
	if n > 0 {
		s.maxPerHost = n
	}
	return s
}

// WithNow sets a fixed clock for testing.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) load(ctx context.Context) (map[string][]model.UserOverride, error) {
	raw, err := s.store.Get(ctx, store.KeyUserOverrides)
	if err != nil {
		return nil, eris.Wrap(err, "override: load")
	}
	all := make(map[string][]model.UserOverride)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &all); err != nil {
			return nil, eris.Wrap(err, "override: decode")
		}
	}
	return all, nil
}

func (s *Store) save(ctx context.Context, all map[string][]model.UserOverride) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return eris.Wrap(err, "override: encode")
	}
	return eris.Wrap(s.store.Set(ctx, store.KeyUserOverrides, raw), "override: persist")
}

// Save stores an override, replacing any existing entry for the same
// (pageType, field) and evicting the least-recently-updated entry once the
// host exceeds the cap.
func (s *Store) Save(ctx context.Context, ov model.UserOverride) error {
	if ov.Hostname == "" {
		return eris.New("override: hostname required")
	}
	all, err := s.load(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if ov.CreatedAt.IsZero() {
		ov.CreatedAt = now
	}
	ov.UpdatedAt = now

	list := all[ov.Hostname]
	replaced := false
	for i, existing := range list {
		if existing.PageType == ov.PageType && existing.Field == ov.Field {
			ov.CreatedAt = existing.CreatedAt
			list[i] = ov
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, ov)
	}

	for len(list) > s.maxPerHost {
		oldest := 0
		for i, o := range list {
			if o.UpdatedAt.Before(list[oldest].UpdatedAt) {
				oldest = i
			}
		}
		list = append(list[:oldest], list[oldest+1:]...)
	}

	all[ov.Hostname] = list
	return s.save(ctx, all)
}

// ForHost returns a host's overrides, most successful first so tier 1 tries
// the proven ones before the flaky ones.
func (s *Store) ForHost(ctx context.Context, hostname string) ([]model.UserOverride, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]model.UserOverride, 0, len(all[hostname]))
	list = append(list, all[hostname]...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].SuccessCount-list[i].FailureCount > list[j].SuccessCount-list[j].FailureCount
	})
	return list, nil
}

// Get returns one override, or nil when absent.
func (s *Store) Get(ctx context.Context, hostname, pageType, field string) (*model.UserOverride, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range all[hostname] {
		if o.PageType == pageType && o.Field == field {
			return &o, nil
		}
	}
	return nil, nil
}

// RecordResult bumps the counters of the one override identified by
// (pageType, field) after a replay. A successful replay also refreshes
// UpdatedAt, keeping working overrides away from the eviction edge; failures
// leave the timestamp alone so dead entries age out.
func (s *Store) RecordResult(ctx context.Context, hostname, pageType, field string, success bool) error {
	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	list := all[hostname]
	for i := range list {
		if list[i].PageType != pageType || list[i].Field != field {
			continue
		}
		if success {
			list[i].SuccessCount++
			list[i].UpdatedAt = s.now().UTC()
		} else {
			list[i].FailureCount++
		}
		all[hostname] = list
		return s.save(ctx, all)
	}
	return nil
}

// Delete removes all overrides for a hostname.
func (s *Store) Delete(ctx context.Context, hostname string) error {
	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[hostname]; !ok {
		return nil
	}
	delete(all, hostname)
	return s.save(ctx, all)
}
