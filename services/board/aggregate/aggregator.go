// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aggregate joins the active dashboard's configuration with
// live run statuses from the upstream CI provider.
package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/FlightBoard/services/board/apperr"
	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/AleutianAI/FlightBoard/services/board/githubapp"
	"golang.org/x/sync/errgroup"
)

// defaultParallelism bounds concurrent upstream calls per collection.
const defaultParallelism = 8

// ConfigReader is the read-only slice of the configuration store the
// aggregator depends on.
type ConfigReader interface {
	GetActiveConfiguration(ctx context.Context) (*datatypes.ActiveConfiguration, error)
}

// StatusProvider is the upstream CI contract: installation resolution
// plus latest-run lookup under one installation.
type StatusProvider interface {
	ListInstallations(ctx context.Context) ([]githubapp.Installation, error)
	LatestRun(ctx context.Context, installationID int64, owner, repo, workflow string) (*datatypes.RunStatus, error)
}

// Aggregator produces the combined configuration + status payload.
type Aggregator struct {
	config      ConfigReader
	provider    StatusProvider
	logger      *slog.Logger
	parallelism int
	now         func() time.Time
}

// New creates an aggregator with default parallelism.
func New(config ConfigReader, provider StatusProvider) *Aggregator {
	return &Aggregator{
		config:      config,
		provider:    provider,
		logger:      slog.Default(),
		parallelism: defaultParallelism,
		now:         time.Now,
	}
}

// Collect assembles the board status for the active dashboard:
//
//  1. Read the active configuration.
//  2. Drop (and log) malformed entries; one bad entry never blocks the
//     rest of the dashboard.
//  3. Resolve one installation per distinct owner.
//  4. Entries without a resolvable installation get a synthesized
//     "integration not available" status.
//  5. Fetch the remaining latest runs concurrently; each call's failure
//     is captured as that entry's error status, never propagated.
//  6. Merge in configuration order with a timestamp and count.
//
// Only configuration-store failures (blob unreachable, corrupt
// document) surface as errors; upstream trouble degrades per entry.
func (a *Aggregator) Collect(ctx context.Context) (*datatypes.BoardStatus, error) {
	cfg, err := a.config.GetActiveConfiguration(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]datatypes.WorkflowEntry, 0, len(cfg.Workflows))
	for _, e := range cfg.Workflows {
		if e.Owner == "" || e.Repo == "" || e.Workflow == "" {
			a.logger.Warn("dropping malformed workflow entry",
				"owner", e.Owner, "repo", e.Repo, "workflow", e.Workflow)
			continue
		}
		entries = append(entries, e)
	}

	statuses := a.fetchStatuses(ctx, entries)

	return &datatypes.BoardStatus{
		Dashboards:        cfg.Dashboards,
		ActiveDashboardID: cfg.ActiveDashboardID,
		Workflows:         statuses,
		Timestamp:         a.now().UTC().Format(time.RFC3339),
		Count:             len(statuses),
	}, nil
}

func (a *Aggregator) fetchStatuses(ctx context.Context, entries []datatypes.WorkflowEntry) []datatypes.WorkflowStatus {
	statuses := make([]datatypes.WorkflowStatus, len(entries))
	if len(entries) == 0 {
		return statuses
	}

	installations, err := a.provider.ListInstallations(ctx)
	if err != nil {
		a.logger.Error("failed to list installations", "error", err)
		for i, e := range entries {
			statuses[i] = errorStatus(e, "CI provider unavailable: "+apperr.MessageOf(err))
		}
		return statuses
	}

	// One resolution per distinct owner, not per workflow.
	byOwner := make(map[string]*githubapp.Installation)
	for i := range entries {
		owner := entries[i].Owner
		if _, seen := byOwner[owner]; seen {
			continue
		}
		if inst, ok := githubapp.FindInstallation(installations, owner); ok {
			byOwner[owner] = &inst
		} else {
			byOwner[owner] = nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i := range entries {
		entry := entries[i]
		inst := byOwner[entry.Owner]
		if inst == nil {
			statuses[i] = errorStatus(entry, "integration not available for owner "+entry.Owner)
			continue
		}
		idx := i
		g.Go(func() error {
			run, err := a.provider.LatestRun(gctx, inst.ID, entry.Owner, entry.Repo, entry.Workflow)
			if err != nil {
				// Captured per entry; sibling fetches keep going.
				a.logger.Warn("latest run fetch failed",
					"owner", entry.Owner, "repo", entry.Repo,
					"workflow", entry.Workflow, "error", err)
				statuses[idx] = errorStatus(entry, apperr.MessageOf(err))
				return nil
			}
			statuses[idx] = datatypes.WorkflowStatus{
				WorkflowEntry: entry,
				Status:        run.Status,
				Conclusion:    run.Conclusion,
				URL:           run.URL,
				UpdatedAt:     run.UpdatedAt,
				Display:       datatypes.DisplayState(run.Status, run.Conclusion),
			}
			return nil
		})
	}
	// Goroutines never return errors; Wait only joins them.
	_ = g.Wait()
	return statuses
}

func errorStatus(entry datatypes.WorkflowEntry, reason string) datatypes.WorkflowStatus {
	return datatypes.WorkflowStatus{
		WorkflowEntry: entry,
		Status:        datatypes.StatusError,
		Conclusion:    datatypes.ConclusionError,
		URL:           githubapp.RunsPageURL(entry.Owner, entry.Repo, entry.Workflow),
		Display:       datatypes.DisplayState(datatypes.StatusError, datatypes.ConclusionError),
		Error:         reason,
	}
}
