// Package pipeline orchestrates one run of the ingestion state machine:
// fetch → build → land → bridge → stage → merge → archive, strictly in
// order, under the run lock, with no rollback and no partial commit across
// stages. A failure leaves state at the last completed stage; the landing
// objects stay in place, so the next run's bridge re-includes them and the
// merge anti-join keeps the datamart effect idempotent.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gschex1112/songflow/internal/lifecycle"
	"github.com/gschex1112/songflow/internal/metrics"
	"github.com/gschex1112/songflow/internal/notify"
	"github.com/gschex1112/songflow/internal/records"
	"github.com/gschex1112/songflow/internal/runlock"
	"github.com/gschex1112/songflow/internal/schedule"
	"github.com/gschex1112/songflow/internal/scrape"
	"github.com/gschex1112/songflow/internal/warehouse"
	"github.com/gschex1112/songflow/internal/writer"
	"github.com/gschex1112/songflow/pkg/types"
)

// Fetcher retrieves the aligned triples from the source page.
type Fetcher interface {
	Fetch(ctx context.Context) (scrape.Triples, error)
}

// BatchWriter lands one batch as a new object.
type BatchWriter interface {
	WriteBatch(ctx context.Context, recs []types.PlayRecord) (types.Batch, string, error)
}

// Archiver moves consumed landing objects to the archive store.
type Archiver interface {
	Run(ctx context.Context, keys []string) (int, error)
}

// Cataloger lists the current landing catalog.
type Cataloger interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Runner wires the pipeline components together for one deployment.
type Runner struct {
	Pipeline string
	Sentinel string
	BaseName string

	Fetcher   Fetcher
	Writer    BatchWriter
	Engine    warehouse.Engine
	Landing   Cataloger
	Archiver  Archiver
	Locker    runlock.Locker
	Notifier  *notify.Dispatcher
	Policy    types.RetryPolicy
	Logger    *slog.Logger
}

// Run executes one full pass of the pipeline state machine. The lock is
// held for the entire run: staging's clear-then-load is not safe against a
// concurrent run.
func (r *Runner) Run(ctx context.Context) (*types.RunResult, error) {
	runID := ulid.Make().String()
	logger := r.Logger.With("run_id", runID, "pipeline", r.Pipeline)
	started := time.Now()

	metrics.RunsTotal.Add(1)

	result := &types.RunResult{
		RunID:    runID,
		Pipeline: r.Pipeline,
		Stage:    types.StagePending,
	}

	held, err := r.Locker.Acquire(ctx)
	if err != nil {
		return result, r.fail(ctx, result, fmt.Errorf("acquiring run lock: %w", err))
	}
	if !held {
		return result, r.fail(ctx, result, runlock.ErrHeld)
	}
	defer func() {
		if err := r.Locker.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Error("releasing run lock", "error", err)
		}
	}()

	r.status(ctx, result, "Pulling the last songs played from the station page.")

	// FETCHED
	var triples scrape.Triples
	err = schedule.Do(ctx, r.Policy, logger, "fetch", func(ctx context.Context) error {
		t, err := r.Fetcher.Fetch(ctx)
		if err != nil {
			var parseErr *scrape.ParseError
			if errors.As(err, &parseErr) {
				// Schema drift; retrying refetches the same broken page.
				return schedule.Permanent(err)
			}
			return err
		}
		triples = t
		return nil
	})
	if err != nil {
		return result, r.fail(ctx, result, err)
	}

	recs, err := records.Build(triples, r.Sentinel)
	if err != nil {
		return result, r.fail(ctx, result, err)
	}
	result.RecordsFetched = len(recs)
	result.SentinelRows = triples.Len() - len(recs)
	metrics.RecordsFetched.Add(int64(len(recs)))
	metrics.SentinelDropped.Add(int64(result.SentinelRows))
	if err := r.advance(result, types.StageFetched); err != nil {
		return result, r.fail(ctx, result, err)
	}
	logger.Info("records built", "records", len(recs), "sentinel_rows", result.SentinelRows)

	// BATCH_WRITTEN
	r.status(ctx, result, "Landing the batch in the landing store.")
	err = schedule.Do(ctx, r.Policy, logger, "land batch", func(ctx context.Context) error {
		_, key, err := r.Writer.WriteBatch(ctx, recs)
		if err != nil {
			if errors.Is(err, writer.ErrCollision) {
				// Another writer produced this batch id. A retry in the
				// next second would succeed and hide the overlap.
				return schedule.Permanent(err)
			}
			return err
		}
		result.BatchKey = key
		return nil
	})
	if err != nil {
		return result, r.fail(ctx, result, err)
	}
	metrics.BatchesWritten.Add(1)
	if err := r.advance(result, types.StageBatchWritten); err != nil {
		return result, r.fail(ctx, result, err)
	}

	// The catalog consumed by this run: everything un-archived as of now,
	// including this run's batch and any batches stranded by earlier
	// failed runs.
	var catalog []string
	err = schedule.Do(ctx, r.Policy, logger, "list catalog", func(ctx context.Context) error {
		keys, err := r.Landing.List(ctx, r.BaseName+"_")
		if err != nil {
			return err
		}
		catalog = keys
		return nil
	})
	if err != nil {
		return result, r.fail(ctx, result, err)
	}
	result.CatalogSize = len(catalog)

	// RELATION_DEFINED
	r.status(ctx, result, fmt.Sprintf("Bridging %d landing object(s) into the warehouse.", len(catalog)))
	err = schedule.Do(ctx, r.Policy, logger, "define bridge", func(ctx context.Context) error {
		return r.Engine.DefineBridge(ctx)
	})
	if err != nil {
		return result, r.fail(ctx, result, err)
	}
	if err := r.advance(result, types.StageRelationDefined); err != nil {
		return result, r.fail(ctx, result, err)
	}

	// STAGING_LOADED
	r.status(ctx, result, "Refreshing the staging relation.")
	err = schedule.Do(ctx, r.Policy, logger, "load staging", func(ctx context.Context) error {
		return r.Engine.LoadStaging(ctx)
	})
	if err != nil {
		return result, r.fail(ctx, result, err)
	}
	if err := r.advance(result, types.StageStagingLoaded); err != nil {
		return result, r.fail(ctx, result, err)
	}

	// DATAMART_MERGED
	r.status(ctx, result, "Merging new plays into the datamart.")
	err = schedule.Do(ctx, r.Policy, logger, "merge datamart", func(ctx context.Context) error {
		n, err := r.Engine.Merge(ctx)
		if err != nil {
			return err
		}
		result.RowsMerged = n
		return nil
	})
	if err != nil {
		return result, r.fail(ctx, result, err)
	}
	metrics.RowsMerged.Add(result.RowsMerged)
	if err := r.advance(result, types.StageDatamartMerged); err != nil {
		return result, r.fail(ctx, result, err)
	}
	logger.Info("datamart merged", "rows_inserted", result.RowsMerged)

	// ARCHIVED
	r.status(ctx, result, "Archiving consumed landing objects.")
	err = schedule.Do(ctx, r.Policy, logger, "archive", func(ctx context.Context) error {
		moved, err := r.Archiver.Run(ctx, catalog)
		result.ObjectsMoved = moved
		return err
	})
	if err != nil {
		return result, r.fail(ctx, result, err)
	}
	metrics.ObjectsArchived.Add(int64(result.ObjectsMoved))
	if err := r.advance(result, types.StageArchived); err != nil {
		return result, r.fail(ctx, result, err)
	}

	result.Duration = time.Since(started)
	r.status(ctx, result, fmt.Sprintf("Job complete: %d row(s) merged, %d object(s) archived in %s.",
		result.RowsMerged, result.ObjectsMoved, result.Duration.Round(time.Millisecond)))
	logger.Info("run complete",
		"stage", result.Stage,
		"records", result.RecordsFetched,
		"rows_merged", result.RowsMerged,
		"objects_archived", result.ObjectsMoved,
		"duration", result.Duration,
	)
	return result, nil
}

// advance moves the run to the next stage, enforcing the transition table.
func (r *Runner) advance(result *types.RunResult, to types.Stage) error {
	if err := lifecycle.Transition(result.Stage, to); err != nil {
		return err
	}
	result.Stage = to
	return nil
}

// fail records the failure, notifies sinks, and wraps the error with the
// stage the run stopped at.
func (r *Runner) fail(ctx context.Context, result *types.RunResult, err error) error {
	metrics.RunsFailed.Add(1)
	wrapped := fmt.Errorf("run %s failed after %s: %w", result.RunID, result.Stage, err)
	r.Notifier.Dispatch(context.WithoutCancel(ctx), types.Alert{
		Level:     types.AlertLevelError,
		Pipeline:  r.Pipeline,
		RunID:     result.RunID,
		Stage:     result.Stage,
		Message:   wrapped.Error(),
		Timestamp: time.Now(),
	})
	result.Stage = types.StageFailed
	return wrapped
}

// status emits an operator-facing progress line.
func (r *Runner) status(ctx context.Context, result *types.RunResult, msg string) {
	r.Notifier.Dispatch(ctx, types.Alert{
		Level:     types.AlertLevelInfo,
		Pipeline:  r.Pipeline,
		RunID:     result.RunID,
		Stage:     result.Stage,
		Message:   msg,
		Timestamp: time.Now(),
	})
}
