package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSourceTimeout = 5 * time.Second
	defaultEntityTimeout = 3 * time.Second
)

// Recorder receives pipeline instrumentation. A nil Recorder is allowed.
type Recorder interface {
	ObserveFetch(source SourceType, failed bool, elapsed time.Duration)
	CountWarning(code WarningCode)
	CountStale()
}

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	SourceTimeout time.Duration
	EntityTimeout time.Duration
	Logger        *slog.Logger
	Recorder      Recorder
}

// Pipeline runs one refresh cycle: resolve, fan out, merge, sort, summarise.
// It holds no state between runs.
type Pipeline struct {
	store    Store
	timeout  time.Duration
	lookup   time.Duration
	logger   *slog.Logger
	recorder Recorder
}

// NewPipeline wires a Pipeline over the given store.
func NewPipeline(store Store, cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		store:    store,
		timeout:  cfg.SourceTimeout,
		lookup:   cfg.EntityTimeout,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	if p.timeout <= 0 {
		p.timeout = defaultSourceTimeout
	}
	if p.lookup <= 0 {
		p.lookup = defaultEntityTimeout
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run reconciles the referenced entity. It never returns an error: every
// problem is reported as a warning next to a best-effort result.
func (p *Pipeline) Run(ctx context.Context, ref EntityRef) Result {
	logger := p.logger.With(
		slog.String("cycle_id", uuid.NewString()),
		slog.String("entity", ref.String()),
	)

	entity, err := p.resolve(ctx, ref)
	if err != nil {
		logger.Warn("resolve entity", slog.Any("error", err))
		result := Result{
			Entity:       Entity{ID: ref.ID, Kind: ref.Kind},
			Transactions: []Transaction{},
			Summary:      zeroSummary(ref.ID),
			Warnings:     []Warning{warningFor(err, "", "")},
		}
		p.countWarnings(result.Warnings)
		return result
	}

	results := make([]FetchResult, len(fetchers))
	var g errgroup.Group
	for i, f := range fetchers {
		i, f := i, f
		g.Go(func() error {
			results[i] = f.fetch(ctx, p.store, entity, p.timeout)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if p.recorder != nil {
			p.recorder.ObserveFetch(res.Source, res.Err != nil, res.Duration)
		}
		if res.Err != nil {
			logger.Warn("source fetch failed",
				slog.String("source_type", string(res.Source)),
				slog.Duration("elapsed", res.Duration),
				slog.Any("error", res.Err),
			)
		}
	}

	txs, warnings := Merge(results)
	SortChronological(txs)

	summary, err := Summarize(entity, txs)
	if err != nil {
		logger.Error("summarize balance", slog.Any("error", err))
		warnings = append(warnings, warningFor(err, "", ""))
	}

	result := Result{Entity: entity, Transactions: txs, Summary: summary, Warnings: warnings}
	p.countWarnings(result.Warnings)
	logger.Info("reconciled",
		slog.String("state", string(result.State())),
		slog.Int("transactions", len(txs)),
		slog.Int("warnings", len(warnings)),
		slog.String("outstanding", FormatAmount(summary.Outstanding)),
	)
	return result
}

func (p *Pipeline) resolve(ctx context.Context, ref EntityRef) (Entity, error) {
	if !ref.Kind.Valid() || ref.ID <= 0 {
		return Entity{}, fmt.Errorf("%w: %s", ErrEntityNotFound, ref)
	}
	lookupCtx, cancel := context.WithTimeout(ctx, p.lookup)
	defer cancel()

	entity, err := p.store.LookupEntity(lookupCtx, ref)
	if err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			return Entity{}, err
		}
		return Entity{}, fmt.Errorf("%w: lookup %s: %w", ErrSourceFetch, ref, err)
	}
	entity.ID = ref.ID
	entity.Kind = ref.Kind
	return entity, nil
}

func (p *Pipeline) countWarnings(warnings []Warning) {
	if p.recorder == nil {
		return
	}
	for _, w := range warnings {
		p.recorder.CountWarning(w.Code)
	}
}
