package reconcile

import (
	"context"
	"log/slog"
	"sync"
)

// State is a refresh controller state.
type State string

const (
	StateIdle           State = "idle"
	StateLoading        State = "loading"
	StateSuccess        State = "success"
	StatePartialFailure State = "partial_failure"
)

// Runner executes a single refresh cycle.
type Runner interface {
	Run(ctx context.Context, ref EntityRef) Result
}

// Snapshot is the state last applied by a Controller. State is loading while
// the latest request is in flight and idle otherwise; Last keeps the terminal
// state (success or partial_failure) of the applied cycle.
type Snapshot struct {
	RequestID uint64    `json:"request_id"`
	Ref       EntityRef `json:"ref"`
	State     State     `json:"state"`
	Last      State     `json:"last_state,omitempty"`
	Result    *Result   `json:"result,omitempty"`
}

// Outcome describes what happened to one refresh request.
type Outcome struct {
	RequestID uint64
	Result    Result
	// Applied is false when a newer request superseded this one; the result
	// was computed but discarded.
	Applied bool
}

// Controller drives refresh cycles for one view of one entity at a time.
// Each request gets a monotonically increasing id and only the result of the
// latest request is applied. In-flight requests are not aborted.
type Controller struct {
	runner   Runner
	logger   *slog.Logger
	recorder Recorder

	mu     sync.Mutex
	latest uint64
	snap   Snapshot
	loaded bool
}

// NewController wraps runner. logger and recorder may be nil.
func NewController(runner Runner, logger *slog.Logger, recorder Recorder) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		runner:   runner,
		logger:   logger,
		recorder: recorder,
		snap:     Snapshot{State: StateIdle},
	}
}

// Reconcile runs a cycle for ref and applies it unless a newer request was
// issued meanwhile. It is safe to call again before a prior call returns.
// Switching to another entity discards all state of the previous one,
// including its in-flight requests.
func (c *Controller) Reconcile(ctx context.Context, ref EntityRef) Outcome {
	id := c.begin(ref)
	return c.finish(id, c.runner.Run(ctx, ref))
}

// Refresh re-runs the cycle for the currently loaded entity.
func (c *Controller) Refresh(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return Outcome{}, ErrNothingLoaded
	}
	ref := c.snap.Ref
	c.mu.Unlock()
	return c.Reconcile(ctx, ref), nil
}

// Snapshot returns the currently applied state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Controller) begin(ref EntityRef) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest++
	if !c.loaded || c.snap.Ref != ref {
		c.snap = Snapshot{Ref: ref}
		c.loaded = true
	}
	c.snap.RequestID = c.latest
	c.snap.State = StateLoading
	return c.latest
}

func (c *Controller) finish(id uint64, result Result) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.latest {
		if c.recorder != nil {
			c.recorder.CountStale()
		}
		c.logger.Debug("discard stale refresh",
			slog.Uint64("request_id", id),
			slog.Uint64("latest", c.latest),
			slog.String("entity", result.Entity.Ref().String()),
		)
		return Outcome{RequestID: id, Result: result}
	}
	c.snap = Snapshot{
		RequestID: id,
		Ref:       c.snap.Ref,
		State:     StateIdle,
		Last:      result.State(),
		Result:    &result,
	}
	return Outcome{RequestID: id, Result: result, Applied: true}
}
