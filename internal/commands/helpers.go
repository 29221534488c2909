// Package commands implements the CLI subcommands for the songflow binary.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gschex1112/songflow/internal/archive"
	"github.com/gschex1112/songflow/internal/blob"
	"github.com/gschex1112/songflow/internal/notify"
	"github.com/gschex1112/songflow/internal/pipeline"
	"github.com/gschex1112/songflow/internal/runlock"
	"github.com/gschex1112/songflow/internal/scrape"
	"github.com/gschex1112/songflow/internal/warehouse"
	"github.com/gschex1112/songflow/internal/warehouse/athena"
	"github.com/gschex1112/songflow/internal/warehouse/duckdb"
	"github.com/gschex1112/songflow/internal/writer"
	"github.com/gschex1112/songflow/pkg/types"
)

// newLogger builds the process logger. Status lines for operators go
// through the notify sinks; slog carries the structured detail.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("SONGFLOW_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildRunner wires the provider-specific stores, engine, and lock into a
// pipeline Runner. The returned cleanup closes the engine.
func buildRunner(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger) (*pipeline.Runner, func(), error) {
	var (
		landing blob.Store
		archSt  blob.Store
		engine  warehouse.Engine
		locker  runlock.Locker
		err     error
	)

	switch cfg.Provider {
	case types.ProviderAWS:
		landing, err = blob.NewS3Store(ctx, cfg.AWS.LandingBucket, cfg.AWS.LandingPrefix, cfg.AWS.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("creating landing store: %w", err)
		}
		archSt, err = blob.NewS3Store(ctx, cfg.AWS.ArchiveBucket, cfg.AWS.ArchivePrefix, cfg.AWS.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("creating archive store: %w", err)
		}
		engine, err = athena.New(ctx, cfg.AWS, cfg.Warehouse, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating athena engine: %w", err)
		}
		locker, err = runlock.NewDynamoDBLock(ctx, cfg.AWS.LockTable, cfg.Pipeline, cfg.AWS.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("creating run lock: %w", err)
		}

	case types.ProviderLocal:
		landing, err = blob.NewFSStore(cfg.Local.LandingDir)
		if err != nil {
			return nil, nil, fmt.Errorf("creating landing store: %w", err)
		}
		archSt, err = blob.NewFSStore(cfg.Local.ArchiveDir)
		if err != nil {
			return nil, nil, fmt.Errorf("creating archive store: %w", err)
		}
		engine, err = duckdb.Open(cfg.Local.DatabasePath, cfg.Local.LandingDir, cfg.Landing.BaseName, cfg.Warehouse, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening duckdb engine: %w", err)
		}
		lockFile := cfg.Local.LockFile
		if lockFile == "" {
			lockFile = filepath.Join(filepath.Dir(cfg.Local.DatabasePath), cfg.Pipeline+".lock")
		}
		locker, err = runlock.NewFileLock(lockFile)
		if err != nil {
			engine.Close()
			return nil, nil, fmt.Errorf("creating run lock: %w", err)
		}

	default:
		return nil, nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	dispatcher, err := notify.NewDispatcher(cfg.Alerts)
	if err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("creating alert sinks: %w", err)
	}

	runner := &pipeline.Runner{
		Pipeline: cfg.Pipeline,
		Sentinel: cfg.Source.Sentinel,
		BaseName: cfg.Landing.BaseName,
		Fetcher:  scrape.NewFetcher(cfg.Source, logger),
		Writer:   writer.New(landing, cfg.Landing.BaseName, logger),
		Engine:   engine,
		Landing:  landing,
		Archiver: archive.New(landing, archSt, logger),
		Locker:   locker,
		Notifier: dispatcher,
		Policy:   cfg.Retry,
		Logger:   logger,
	}
	cleanup := func() { _ = engine.Close() }
	return runner, cleanup, nil
}
