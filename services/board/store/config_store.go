// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/AleutianAI/FlightBoard/services/board/apperr"
	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/google/uuid"
)

// DefaultBlobKey is the well-known object the document lives at.
const DefaultBlobKey = "workflows.json"

// saveAttempts bounds the re-read/re-apply loop when the blob's
// generation moves between our read and our conditional write.
const saveAttempts = 3

// WorkflowVerifier is the optional add-time check that the upstream CI
// provider can actually resolve a workflow. A nil verifier skips the
// check. Implementations return apperr errors with the upstream kinds
// so not-found, forbidden, and transient failures stay distinguishable.
type WorkflowVerifier interface {
	VerifyWorkflow(ctx context.Context, owner, repo, workflow string) error
}

// ConfigStore provides atomic-per-request semantics over the shared
// configuration document. It keeps no document state between calls;
// every operation is a fresh load-migrate-mutate-save cycle against the
// blob store, with the save conditioned on the generation read.
type ConfigStore struct {
	blobs  BlobStore
	key    string
	logger *slog.Logger
}

// NewConfigStore creates a store reading and writing DefaultBlobKey.
func NewConfigStore(blobs BlobStore) *ConfigStore {
	return &ConfigStore{blobs: blobs, key: DefaultBlobKey, logger: slog.Default()}
}

// NewConfigStoreWithKey creates a store against a custom object key.
func NewConfigStoreWithKey(blobs BlobStore, key string) *ConfigStore {
	return &ConfigStore{blobs: blobs, key: key, logger: slog.Default()}
}

// =============================================================================
// Load / save cycle
// =============================================================================

// load fetches and decodes the current document. An absent blob yields
// a fresh default document at generation zero, so the first save
// requires the object to still not exist.
func (s *ConfigStore) load(ctx context.Context) (*datatypes.ConfigurationDocument, int64, error) {
	data, gen, err := s.blobs.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return datatypes.NewDefaultDocument(), 0, nil
		}
		return nil, 0, apperr.Infrastructure(err, "failed to read configuration from storage")
	}

	doc, migrated, err := DecodeDocument(data)
	if err != nil {
		// Never reset user data on a parse failure.
		return nil, 0, apperr.Infrastructure(err, "stored configuration is corrupt")
	}
	if migrated {
		s.logger.Info("migrated legacy configuration document", "key", s.key)
	}
	return doc, gen, nil
}

func (s *ConfigStore) save(ctx context.Context, doc *datatypes.ConfigurationDocument, gen int64) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperr.Infrastructure(err, "failed to encode configuration")
	}
	return s.blobs.Put(ctx, s.key, data, gen)
}

// update runs one mutation through the full cycle. mutate is applied to
// a freshly loaded document; any error it returns aborts the cycle with
// nothing written. A generation mismatch on save re-reads and re-applies
// up to saveAttempts times, converting last-writer-wins into optimistic
// concurrency where the blob store supports preconditions.
func (s *ConfigStore) update(ctx context.Context, mutate func(doc *datatypes.ConfigurationDocument) error) error {
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		doc, gen, err := s.load(ctx)
		if err != nil {
			return err
		}
		if err := mutate(doc); err != nil {
			return err
		}
		err = s.save(ctx, doc, gen)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPreconditionFailed) {
			s.logger.Warn("configuration write lost a race, retrying",
				"key", s.key, "attempt", attempt)
			continue
		}
		return apperr.Infrastructure(err, "failed to write configuration to storage")
	}
	return apperr.Infrastructure(nil, "configuration write kept losing races, giving up")
}

// =============================================================================
// Input validation
// =============================================================================

// SplitRepo splits an "owner/repo" string into its two segments.
// Exactly two non-empty segments are required.
func SplitRepo(repo string) (string, string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.Validation("repo must be in \"owner/repo\" form, got %q", repo)
	}
	return parts[0], parts[1], nil
}

// ValidWorkflowRef reports whether ref is a numeric workflow id or a
// workflow filename ending in .yml/.yaml.
func ValidWorkflowRef(ref string) bool {
	if ref == "" {
		return false
	}
	if strings.HasSuffix(ref, ".yml") || strings.HasSuffix(ref, ".yaml") {
		return true
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateWorkflowRef(ref string) error {
	if !ValidWorkflowRef(ref) {
		return apperr.Validation("workflow must be a numeric id or a .yml/.yaml filename, got %q", ref)
	}
	return nil
}

// =============================================================================
// Read path
// =============================================================================

// GetActiveConfiguration returns the dashboard selector and the active
// dashboard's workflow entries. Read-only: migrated documents are not
// written back here; the first mutation persists the canonical shape.
func (s *ConfigStore) GetActiveConfiguration(ctx context.Context) (*datatypes.ActiveConfiguration, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	active := doc.ActiveDashboard()
	if active == nil {
		return nil, apperr.Invariant("active dashboard %q not found in document", doc.ActiveDashboardID)
	}
	workflows := make([]datatypes.WorkflowEntry, len(active.Workflows))
	copy(workflows, active.Workflows)
	return &datatypes.ActiveConfiguration{
		Dashboards:        doc.Summaries(),
		ActiveDashboardID: doc.ActiveDashboardID,
		Workflows:         workflows,
	}, nil
}

// =============================================================================
// Workflow mutations
// =============================================================================

// AddWorkflow appends a new entry to the active dashboard. Input shape
// is validated before any storage I/O; the duplicate check and the
// optional upstream verification run against the loaded document before
// anything is written.
func (s *ConfigStore) AddWorkflow(ctx context.Context, req datatypes.AddWorkflowRequest, verifier WorkflowVerifier) (*datatypes.AddWorkflowResponse, error) {
	owner, repo, err := SplitRepo(req.Repo)
	if err != nil {
		return nil, err
	}
	if err := validateWorkflowRef(req.Workflow); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Label) == "" {
		return nil, apperr.Validation("label must not be empty")
	}

	entry := datatypes.WorkflowEntry{
		Owner:    owner,
		Repo:     repo,
		Workflow: req.Workflow,
		Label:    req.Label,
	}

	var resp datatypes.AddWorkflowResponse
	err = s.update(ctx, func(doc *datatypes.ConfigurationDocument) error {
		active := doc.ActiveDashboard()
		if active == nil {
			return apperr.Invariant("active dashboard %q not found in document", doc.ActiveDashboardID)
		}
		if active.FindWorkflow(entry.Key()) >= 0 {
			return apperr.Conflict("workflow %s/%s %s is already on dashboard %q",
				owner, repo, req.Workflow, active.Name)
		}
		if verifier != nil {
			if err := verifier.VerifyWorkflow(ctx, owner, repo, req.Workflow); err != nil {
				return err
			}
		}
		active.Workflows = append(active.Workflows, entry)
		resp = datatypes.AddWorkflowResponse{
			Workflow:      entry,
			DashboardID:   active.ID,
			DashboardName: active.Name,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveWorkflow deletes the entry with the given (owner, repo,
// workflow) key from the active dashboard, preserving the relative
// order of the remaining entries.
func (s *ConfigStore) RemoveWorkflow(ctx context.Context, req datatypes.RemoveWorkflowRequest) (*datatypes.RemoveWorkflowResponse, error) {
	owner, repo, err := SplitRepo(req.Repo)
	if err != nil {
		return nil, err
	}
	if err := validateWorkflowRef(req.Workflow); err != nil {
		return nil, err
	}
	key := datatypes.WorkflowKey{Owner: owner, Repo: repo, Workflow: req.Workflow}

	var resp datatypes.RemoveWorkflowResponse
	err = s.update(ctx, func(doc *datatypes.ConfigurationDocument) error {
		active := doc.ActiveDashboard()
		if active == nil {
			return apperr.Invariant("active dashboard %q not found in document", doc.ActiveDashboardID)
		}
		idx := active.FindWorkflow(key)
		if idx < 0 {
			return apperr.NotFound("workflow %s/%s %s is not on dashboard %q",
				owner, repo, req.Workflow, active.Name)
		}
		resp.Removed = active.Workflows[idx]
		active.Workflows = append(active.Workflows[:idx], active.Workflows[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReorderWorkflows rebuilds the active dashboard's entries in the order
// given. The input must be a pure permutation of the current entries:
// same count, every key present exactly once. Anything else fails the
// whole operation with nothing written.
func (s *ConfigStore) ReorderWorkflows(ctx context.Context, keys []datatypes.WorkflowKey) (*datatypes.ReorderWorkflowsResponse, error) {
	var resp datatypes.ReorderWorkflowsResponse
	err := s.update(ctx, func(doc *datatypes.ConfigurationDocument) error {
		active := doc.ActiveDashboard()
		if active == nil {
			return apperr.Invariant("active dashboard %q not found in document", doc.ActiveDashboardID)
		}
		if len(keys) != len(active.Workflows) {
			return apperr.Validation("reorder must list all %d workflows, got %d",
				len(active.Workflows), len(keys))
		}
		byKey := make(map[datatypes.WorkflowKey]datatypes.WorkflowEntry, len(active.Workflows))
		for _, e := range active.Workflows {
			byKey[e.Key()] = e
		}
		reordered := make([]datatypes.WorkflowEntry, 0, len(keys))
		for _, k := range keys {
			entry, ok := byKey[k]
			if !ok {
				return apperr.Validation("workflow %s/%s %s is not on the active dashboard",
					k.Owner, k.Repo, k.Workflow)
			}
			delete(byKey, k)
			reordered = append(reordered, entry)
		}
		active.Workflows = reordered
		resp = datatypes.ReorderWorkflowsResponse{Count: len(reordered), DashboardID: active.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Dashboard mutations
// =============================================================================

// CreateDashboard appends a new empty dashboard. It becomes active when
// requested, or when it is somehow the only dashboard in the document.
func (s *ConfigStore) CreateDashboard(ctx context.Context, name string, setAsActive bool) (*datatypes.DashboardResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("dashboard name must not be empty")
	}

	var resp datatypes.DashboardResponse
	err := s.update(ctx, func(doc *datatypes.ConfigurationDocument) error {
		if doc.HasName(name, "") {
			return apperr.Conflict("a dashboard named %q already exists", name)
		}
		d := datatypes.Dashboard{
			ID:        uuid.New().String(),
			Name:      name,
			Workflows: []datatypes.WorkflowEntry{},
		}
		doc.Dashboards = append(doc.Dashboards, d)
		if setAsActive || len(doc.Dashboards) == 1 {
			doc.ActiveDashboardID = d.ID
		}
		resp = datatypes.DashboardResponse{
			ID:       d.ID,
			Name:     d.Name,
			IsActive: doc.ActiveDashboardID == d.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RenameDashboard updates a dashboard's name in place. Renaming a
// dashboard to its current name succeeds as a no-op; the collision
// check only considers other dashboards.
func (s *ConfigStore) RenameDashboard(ctx context.Context, dashboardID, name string) (*datatypes.DashboardResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("dashboard name must not be empty")
	}

	var resp datatypes.DashboardResponse
	err := s.update(ctx, func(doc *datatypes.ConfigurationDocument) error {
		d := doc.FindDashboard(dashboardID)
		if d == nil {
			return apperr.NotFound("dashboard %q not found", dashboardID)
		}
		if doc.HasName(name, dashboardID) {
			return apperr.Conflict("a dashboard named %q already exists", name)
		}
		d.Name = name
		resp = datatypes.DashboardResponse{
			ID:       d.ID,
			Name:     d.Name,
			IsActive: doc.ActiveDashboardID == d.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteDashboard removes a dashboard. The last dashboard can never be
// deleted. When the deleted dashboard was active, the first remaining
// dashboard in document order becomes active.
func (s *ConfigStore) DeleteDashboard(ctx context.Context, dashboardID string) (*datatypes.DeleteDashboardResponse, error) {
	var resp datatypes.DeleteDashboardResponse
	err := s.update(ctx, func(doc *datatypes.ConfigurationDocument) error {
		idx := -1
		for i := range doc.Dashboards {
			if doc.Dashboards[i].ID == dashboardID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperr.NotFound("dashboard %q not found", dashboardID)
		}
		if len(doc.Dashboards) == 1 {
			return apperr.Validation("cannot delete the only dashboard")
		}
		deleted := doc.Dashboards[idx]
		doc.Dashboards = append(doc.Dashboards[:idx], doc.Dashboards[idx+1:]...)
		if doc.ActiveDashboardID == deleted.ID {
			doc.ActiveDashboardID = doc.Dashboards[0].ID
		}
		resp = datatypes.DeleteDashboardResponse{
			ID:                deleted.ID,
			Name:              deleted.Name,
			ActiveDashboardID: doc.ActiveDashboardID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetActiveDashboard switches the active dashboard.
func (s *ConfigStore) SetActiveDashboard(ctx context.Context, dashboardID string) (*datatypes.DashboardResponse, error) {
	var resp datatypes.DashboardResponse
	err := s.update(ctx, func(doc *datatypes.ConfigurationDocument) error {
		d := doc.FindDashboard(dashboardID)
		if d == nil {
			return apperr.NotFound("dashboard %q not found", dashboardID)
		}
		doc.ActiveDashboardID = d.ID
		resp = datatypes.DashboardResponse{ID: d.ID, Name: d.Name, IsActive: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
