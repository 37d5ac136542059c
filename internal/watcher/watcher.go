// Package watcher keeps an extraction current while a page keeps changing.
// It listens to injected navigation and mutation sources, debounces mutation
// storms, re-runs the pipeline, and tracks value stability across reads. The
// sources are plain channels so any environment (a browser bridge, a file
// watcher, a test) can drive it.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
	"github.com/sells-group/price-sentry/internal/pipeline"
)

// Defaults for the watch loop.
const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultMaxWait  = 30 * time.Second
)

// Triggers reported on emitted results.
const (
	TriggerMutation   = "mutation"
	TriggerNavigation = "navigation"
	TriggerForced     = "forced"
	TriggerMaxWait    = "max_wait"
)

// Mutation is one change hint from the environment. Text carries the changed
// content when the source knows it; hints with no price-looking text are
// skipped without debouncing.
type Mutation struct {
	Text string
}

// NavigationSource emits the URL of each page (or in-page route) change.
type NavigationSource interface {
	Navigations() <-chan string
}

// MutationSource emits DOM change hints.
type MutationSource interface {
	Mutations() <-chan Mutation
}

// DocumentSource produces the current document on demand. The watcher never
// caches documents; every extraction sees a fresh snapshot.
type DocumentSource func(ctx context.Context) (*dom.Document, error)

// Result is one watch-loop emission.
type Result struct {
	Extraction *pipeline.Result
	Stability  model.StabilityInfo
	Stable     bool
	Trigger    string
}

// Watcher drives re-extraction over a changing page session.
type Watcher struct {
	pipe     *pipeline.Pipeline
	docs     DocumentSource
	nav      NavigationSource
	mut      MutationSource
	onResult func(Result)

	runOpts   pipeline.Options
	debounce  *Debouncer
	stability *Stability
	maxWait   time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a watcher. docs and onResult are required; nav and mut may be
// nil when the corresponding events cannot occur.
func New(pipe *pipeline.Pipeline, docs DocumentSource, onResult func(Result)) *Watcher {
	return &Watcher{
		pipe:      pipe,
		docs:      docs,
		onResult:  onResult,
		debounce:  NewDebouncer(DefaultDebounce),
		stability: NewStability(),
		maxWait:   DefaultMaxWait,
		log:       zap.L().With(zap.String("component", "watcher")),
	}
}

// WithSources attaches the navigation and mutation event sources.
func (w *Watcher) WithSources(nav NavigationSource, mut MutationSource) *Watcher {
	w.nav = nav
	w.mut = mut
	return w
}

// WithRunOptions sets the pipeline options used for every extraction.
func (w *Watcher) WithRunOptions(opts pipeline.Options) *Watcher {
	w.runOpts = opts
	return w
}

// WithDebounce overrides the mutation quiet interval.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = NewDebouncer(d)
	}
	return w
}

// WithMaxWait overrides the settle deadline after which the best available
// result is emitted even if the value never stabilized.
func (w *Watcher) WithMaxWait(d time.Duration) *Watcher {
	if d > 0 {
		w.maxWait = d
	}
	return w
}

// WithStability overrides the stability tracker, for tests that need a fixed
// clock or tighter thresholds.
func (w *Watcher) WithStability(s *Stability) *Watcher {
	if s != nil {
		w.stability = s
	}
	return w
}

// Start launches the watch loop and runs one initial extraction. Calling
// Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.active {
		w.mu.Unlock()
		return nil
	}
	if w.docs == nil {
		w.mu.Unlock()
		return eris.New("watcher: no document source")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.active = true
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(loopCtx)
	return nil
}

// Stop shuts the loop down and waits for it to exit. No callback fires after
// Stop returns. Stopping a stopped watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		return
	}
	w.active = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	w.debounce.Cancel()
	<-done
}

// ForceExtraction runs the pipeline immediately, outside the debounce.
func (w *Watcher) ForceExtraction(ctx context.Context) {
	w.debounce.Cancel()
	w.extract(ctx, TriggerForced)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var navCh <-chan string
	if w.nav != nil {
		navCh = w.nav.Navigations()
	}
	var mutCh <-chan Mutation
	if w.mut != nil {
		mutCh = w.mut.Mutations()
	}

	settle := time.NewTimer(w.maxWait)
	defer settle.Stop()

	w.extract(ctx, TriggerForced)

	for {
		select {
		case <-ctx.Done():
			return

		case url, ok := <-navCh:
			if !ok {
				navCh = nil
				continue
			}
			// New page, new session.
			w.log.Debug("navigation", zap.String("url", url))
			w.stability.Reset()
			w.debounce.Cancel()
			resetTimer(settle, w.maxWait)
			w.extract(ctx, TriggerNavigation)

		case m, ok := <-mutCh:
			if !ok {
				mutCh = nil
				continue
			}
			if m.Text != "" && !money.LooksLikePrice(m.Text) {
				continue
			}
			w.debounce.Trigger(func() { w.extract(ctx, TriggerMutation) })

		case <-settle.C:
			if w.stability.IsStable() {
				continue
			}
			// The page never settled; surface the best available answer.
			w.extract(ctx, TriggerMaxWait)
		}
	}
}

func (w *Watcher) extract(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	doc, err := w.docs(ctx)
	if err != nil {
		w.log.Warn("document source failed", zap.Error(err))
		return
	}

	res := w.pipe.Run(ctx, doc, w.runOpts)

	stable := false
	if total := res.Final.UsableTotal(); total != nil {
		stable = w.stability.Record(*total, res.Final.Confidence)
	}

	w.emit(Result{
		Extraction: res,
		Stability:  w.stability.Info(),
		Stable:     stable,
		Trigger:    trigger,
	})
}

func (w *Watcher) emit(r Result) {
	w.mu.Lock()
	active := w.active
	w.mu.Unlock()
	if !active || w.onResult == nil {
		return
	}
	w.onResult(r)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
