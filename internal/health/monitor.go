// Package health maintains the per-hostname extraction event log and the
// aggregates derived from it. Aggregates are recomputed from the retained
// window on every read rather than stored, so a retention trim can never
// leave stale counters behind.
package health

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/store"
)

// DefaultRetention is how many events are kept per hostname.
const DefaultRetention = 200

// Degradation thresholds: a host is degraded once it has enough history to
// judge and fewer than half its recent attempts succeed.
const (
	degradedMinAttempts = 3
	degradedMaxRate     = 0.5
)

// Monitor records extraction outcomes and answers health queries.
type Monitor struct {
	store     store.Store
	retention int
	now       func() time.Time
	log       *zap.Logger
}

// NewMonitor creates a monitor with the default per-host retention.
func NewMonitor(st store.Store) *Monitor {
	return &Monitor{
		store:     st,
		retention: DefaultRetention,
		now:       time.Now,
		log:       zap.L().With(zap.String("component", "health")),
	}
}

// WithRetention overrides the per-host event retention.
func (m *Monitor) WithRetention(n int) *Monitor {
	if n > 0 {
		m.retention = n
	}
	return m
}

// WithNow sets a fixed clock for testing.
func (m *Monitor) WithNow(now func() time.Time) *Monitor {
	m.now = now
	return m
}

func (m *Monitor) load(ctx context.Context) (map[string][]model.ExtractionEvent, error) {
	raw, err := m.store.Get(ctx, store.KeyExtractionEvents)
	if err != nil {
		return nil, eris.Wrap(err, "health: load events")
	}
	events := make(map[string][]model.ExtractionEvent)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, eris.Wrap(err, "health: decode events")
		}
	}
	return events, nil
}

// Record appends one event, trimming the host's log to the retention window.
// Telemetry never gates extraction: storage failures are logged and swallowed.
func (m *Monitor) Record(ctx context.Context, ev model.ExtractionEvent) {
	if ev.Hostname == "" {
		return
	}
	events, err := m.load(ctx)
	if err != nil {
		m.log.Debug("event log unavailable", zap.Error(err))
		return
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now().UTC()
	}
	ev.Errors = SanitizeAll(ev.Errors)

	log := append(events[ev.Hostname], ev)
	if len(log) > m.retention {
		log = log[len(log)-m.retention:]
	}
	events[ev.Hostname] = log

	raw, err := json.Marshal(events)
	if err != nil {
		m.log.Debug("event log encode failed", zap.Error(err))
		return
	}
	if err := m.store.Set(ctx, store.KeyExtractionEvents, raw); err != nil {
		m.log.Debug("event log persist failed", zap.Error(err))
	}
}

// Health recomputes the aggregate for one hostname from its retained events.
// A host with no history returns a zero aggregate, never an error.
func (m *Monitor) Health(ctx context.Context, hostname string) model.ExtractionHealth {
	h := model.ExtractionHealth{Hostname: hostname}
	events, err := m.load(ctx)
	if err != nil {
		m.log.Debug("event log unavailable", zap.Error(err))
		return h
	}

	for _, ev := range events[hostname] {
		h.Attempts++
		if ev.Success {
			switch ev.Confidence {
			case model.ConfidenceHigh:
				h.HighSuccesses++
			case model.ConfidenceMedium:
				h.MediumSuccesses++
			default:
				h.LowSuccesses++
			}
			ts := ev.Timestamp
			h.LastSuccessAt = &ts
		} else {
			h.Failures++
			ts := ev.Timestamp
			h.LastFailureAt = &ts
		}
	}

	if h.Attempts > 0 {
		h.SuccessRate = float64(h.Attempts-h.Failures) / float64(h.Attempts)
	}
	h.IsDegraded = h.Attempts >= degradedMinAttempts && h.SuccessRate < degradedMaxRate
	return h
}

// Events returns the retained raw events for a hostname, newest last.
func (m *Monitor) Events(ctx context.Context, hostname string) ([]model.ExtractionEvent, error) {
	events, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]model.ExtractionEvent(nil), events[hostname]...), nil
}

// DebugPayload is the structure handed to a human diagnosing a broken host:
// the recomputed aggregate plus the sanitized raw events behind it.
type DebugPayload struct {
	Health model.ExtractionHealth  `json:"health"`
	Events []model.ExtractionEvent `json:"events"`
}

// Debug assembles the debug payload for one hostname.
func (m *Monitor) Debug(ctx context.Context, hostname string) DebugPayload {
	events, err := m.Events(ctx, hostname)
	if err != nil {
		m.log.Debug("event log unavailable", zap.Error(err))
	}
	return DebugPayload{
		Health: m.Health(ctx, hostname),
		Events: events,
	}
}
