package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ledger-recon/internal/jobs"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StatementRefreshJob recomputes counterparty statements in the background.
// When tasks for the same entity overlap only the later request is
// published. Results are never kept once a task returns.
type StatementRefreshJob struct {
	Runner    reconcile.Runner
	Publisher StatementPublisher
	Recorder  reconcile.Recorder
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time

	mu       sync.Mutex
	inflight map[reconcile.EntityRef]*generation
}

// generation numbers the requests of one entity. The entry is dropped once
// no request for the entity is running.
type generation struct {
	latest  uint64
	running int
}

// NewStatementRefreshJob wires dependencies for the refresh handler.
func NewStatementRefreshJob(runner reconcile.Runner, publisher StatementPublisher, recorder reconcile.Recorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatementRefreshJob {
	return &StatementRefreshJob{
		Runner:    runner,
		Publisher: publisher,
		Recorder:  recorder,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		inflight: make(map[reconcile.EntityRef]*generation),
	}
}

// Handle processes TaskStatementRefresh tasks.
func (j *StatementRefreshJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("statement refresh: handler not configured")
	}
	var payload StatementRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	ref := payload.Ref()
	logger := j.log().With(slog.String("entity", ref.String()))

	tracker := j.metrics().Track(TaskStatementRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	id := j.begin(ref)
	result := j.Runner.Run(ctx, ref)
	outcome := reconcile.Outcome{RequestID: id, Result: result, Applied: j.finish(ref, id)}

	switch {
	case !outcome.Applied:
		j.metrics().AddRefresh(string(ref.Kind), "superseded")
		logger.Debug("refresh superseded", slog.Uint64("request_id", outcome.RequestID))
		return resultErr
	case result.HasWarning(reconcile.WarningEntityNotFound):
		resultErr = fmt.Errorf("statement refresh %s: %w", ref, asynq.SkipRetry)
		logger.Warn("entity not found")
		return resultErr
	case result.Terminal():
		resultErr = fmt.Errorf("statement refresh %s: %s", ref, result.Warnings[0].Message)
		logger.Error("resolve entity", slog.String("warning", result.Warnings[0].Message))
		return resultErr
	}

	j.metrics().AddRefresh(string(ref.Kind), string(result.State()))
	if j.Publisher != nil {
		if err := j.Publisher.Publish(ctx, NewStatementEvent(outcome, j.now())); err != nil {
			resultErr = err
			logger.Error("publish statement", slog.Any("error", err))
			return resultErr
		}
	}
	logger.Info("statement refreshed",
		slog.Uint64("request_id", outcome.RequestID),
		slog.String("state", string(result.State())),
		slog.String("outstanding", reconcile.FormatAmount(result.Summary.Outstanding)),
	)
	return resultErr
}

func (j *StatementRefreshJob) begin(ref reconcile.EntityRef) uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.inflight == nil {
		j.inflight = make(map[reconcile.EntityRef]*generation)
	}
	gen, ok := j.inflight[ref]
	if !ok {
		gen = &generation{}
		j.inflight[ref] = gen
	}
	gen.latest++
	gen.running++
	return gen.latest
}

// finish reports whether id is still the latest request for ref.
func (j *StatementRefreshJob) finish(ref reconcile.EntityRef, id uint64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	gen := j.inflight[ref]
	applied := gen.latest == id
	gen.running--
	if gen.running == 0 {
		delete(j.inflight, ref)
	}
	if !applied && j.Recorder != nil {
		j.Recorder.CountStale()
	}
	return applied
}

// tracked returns the number of entities with a running refresh.
func (j *StatementRefreshJob) tracked() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.inflight)
}

func (j *StatementRefreshJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatementRefreshJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatementRefresh))
	}
	return slog.Default().With(slog.String("job", TaskStatementRefresh))
}

func (j *StatementRefreshJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *StatementRefreshJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
