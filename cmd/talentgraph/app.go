package main

import (
	"context"
	"fmt"
	"time"

	"github.com/talentgraph/talentgraph-go/internal/checkpoint"
	"github.com/talentgraph/talentgraph-go/internal/logging"
	"github.com/talentgraph/talentgraph-go/internal/report"
	"github.com/talentgraph/talentgraph-go/internal/storage"
)

// app bundles the resources every pipeline subcommand opens: the database,
// the checkpoint store and a per-subsystem file logger.
type app struct {
	logger      *logging.Logger
	store       *storage.Store
	checkpoints *checkpoint.Store
	started     time.Time
}

func openApp(ctx context.Context, subsystem string) (*app, error) {
	logger, err := logging.ForSubsystem(cfg.Paths.LogDir, subsystem, verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := storage.NewStore(cfg.DB.DSN(), logger)
	if err != nil {
		logger.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		logger.Close()
		return nil, err
	}

	cps, err := checkpoint.Open(cfg.Paths.CheckpointDir)
	if err != nil {
		store.Close()
		logger.Close()
		return nil, err
	}

	return &app{
		logger:      logger,
		store:       store,
		checkpoints: cps,
		started:     time.Now(),
	}, nil
}

func (a *app) close() {
	a.checkpoints.Close()
	a.store.Close()
	a.logger.Close()
}

// report writes the run summary file and tells the operator where it is.
// Reporting failures never fail the run.
func (a *app) report(subsystem string, counters map[string]int) {
	path, err := report.Write(cfg.Paths.ReportDir, subsystem, a.started, counters)
	if err != nil {
		a.logger.Warn("could not write run report", "error", err)
		return
	}
	fmt.Printf("Report: %s\n", path)
}
