package build

import (
	"context"
	"sync"

	"github.com/conneroisu/cwrap/internal/logging"
)

// Result is delivered once per triggered build.
type Result struct {
	Outcome  Outcome
	Snapshot Snapshot
	// Skipped is set when the build was cancelled and left the state untouched.
	Skipped bool
}

// Listener is notified after every completed build.
type Listener func(Result)

// Orchestrator runs builds one at a time and feeds each outcome into the
// build state.
type Orchestrator struct {
	builder Builder
	state   *State
	metrics *BuildMetrics
	logger  logging.Logger

	runMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []Listener

	wg sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator driving builder and updating state.
func NewOrchestrator(builder Builder, state *State, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Orchestrator{
		builder: builder,
		state:   state,
		metrics: NewBuildMetrics(),
		logger:  logger.WithComponent("build"),
	}
}

// State returns the build state the orchestrator writes to.
func (o *Orchestrator) State() *State {
	return o.state
}

// Metrics returns the build metrics.
func (o *Orchestrator) Metrics() *BuildMetrics {
	return o.metrics
}

// Available reports whether the build step can be run.
func (o *Orchestrator) Available() error {
	return o.builder.Available()
}

// AddListener registers fn to be called after every completed build.
func (o *Orchestrator) AddListener(fn Listener) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Trigger starts a build and returns immediately. The returned channel
// receives exactly one Result and is then closed.
func (o *Orchestrator) Trigger(ctx context.Context, mode Mode, reason string) <-chan Result {
	results := make(chan Result, 1)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(results)
		results <- o.run(ctx, mode, reason)
	}()

	return results
}

// Build runs a build and waits for its result.
func (o *Orchestrator) Build(ctx context.Context, mode Mode, reason string) Result {
	return <-o.Trigger(ctx, mode, reason)
}

// Wait blocks until every triggered build has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, mode Mode, reason string) Result {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if err := ctx.Err(); err != nil {
		o.logger.Debug(ctx, "Build skipped", "reason", reason, "mode", string(mode))
		return Result{Outcome: Outcome{Mode: mode, Reason: reason, Err: err}, Snapshot: o.state.Get(), Skipped: true}
	}

	o.logger.Info(ctx, "Build started", "reason", reason, "mode", string(mode))

	outcome := o.builder.Run(ctx, mode)
	outcome.Reason = reason

	if ctx.Err() != nil {
		o.logger.Warn(ctx, ctx.Err(), "Build cancelled", "reason", reason)
		return Result{Outcome: outcome, Snapshot: o.state.Get(), Skipped: true}
	}

	snapshot := o.state.Transition(ctx, outcome)
	o.metrics.RecordBuild(outcome)

	if outcome.Failed() {
		o.logger.Error(ctx, outcome.Err, "Build failed",
			"reason", reason,
			"duration", outcome.Duration,
			"generation", snapshot.Generation)
	} else {
		o.logger.Info(ctx, "Build succeeded",
			"reason", reason,
			"duration", outcome.Duration,
			"generation", snapshot.Generation)
	}

	result := Result{Outcome: outcome, Snapshot: snapshot}
	o.notify(result)
	return result
}

func (o *Orchestrator) notify(result Result) {
	o.listenersMu.RLock()
	listeners := make([]Listener, len(o.listeners))
	copy(listeners, o.listeners)
	o.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(result)
	}
}
