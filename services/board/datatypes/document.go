// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the persisted configuration document, the
// request/response types of the board API, and the run-status model.
package datatypes

import "github.com/google/uuid"

// DefaultDashboardName is the name given to the dashboard that legacy
// documents are wrapped into and that an empty store bootstraps with.
const DefaultDashboardName = "Main Dashboard"

// WorkflowKey is the identity of a workflow entry within a dashboard:
// the exact (owner, repo, workflow) triple, matched case-sensitively.
type WorkflowKey struct {
	Owner    string `json:"owner" binding:"required"`
	Repo     string `json:"repo" binding:"required"`
	Workflow string `json:"workflow" binding:"required"`
}

// WorkflowEntry is one monitored workflow on a dashboard.
//
// Workflow is either a numeric workflow id or a workflow filename ending
// in .yml/.yaml, exactly as GitHub's Actions API accepts in the
// workflow_id path segment.
type WorkflowEntry struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Workflow string `json:"workflow"`
	Label    string `json:"label"`
}

// Key returns the identity triple of the entry.
func (e WorkflowEntry) Key() WorkflowKey {
	return WorkflowKey{Owner: e.Owner, Repo: e.Repo, Workflow: e.Workflow}
}

// Dashboard is a named, ordered collection of workflow entries.
// The id is generated at creation time and never changes; workflow order
// is significant and preserved across unrelated mutations.
type Dashboard struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Workflows []WorkflowEntry `json:"workflows"`
}

// FindWorkflow returns the index of the entry with the given key,
// or -1 when absent.
func (d *Dashboard) FindWorkflow(key WorkflowKey) int {
	for i, e := range d.Workflows {
		if e.Key() == key {
			return i
		}
	}
	return -1
}

// DashboardSummary is the id/name projection used wherever workflow
// contents are not part of the payload (the dashboard selector).
type DashboardSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConfigurationDocument is the root object persisted at the well-known
// blob key. Invariants after any successful write: Dashboards is never
// empty, and ActiveDashboardID names a member of Dashboards.
type ConfigurationDocument struct {
	Dashboards        []Dashboard `json:"dashboards"`
	ActiveDashboardID string      `json:"activeDashboardId"`
}

// NewDefaultDocument returns a document with a single empty dashboard
// marked active. Used when the blob does not exist yet.
func NewDefaultDocument() *ConfigurationDocument {
	d := Dashboard{
		ID:        uuid.New().String(),
		Name:      DefaultDashboardName,
		Workflows: []WorkflowEntry{},
	}
	return &ConfigurationDocument{
		Dashboards:        []Dashboard{d},
		ActiveDashboardID: d.ID,
	}
}

// FindDashboard returns a pointer to the dashboard with the given id,
// or nil when absent.
func (doc *ConfigurationDocument) FindDashboard(id string) *Dashboard {
	for i := range doc.Dashboards {
		if doc.Dashboards[i].ID == id {
			return &doc.Dashboards[i]
		}
	}
	return nil
}

// ActiveDashboard returns the dashboard referenced by ActiveDashboardID,
// or nil if the reference is dangling.
func (doc *ConfigurationDocument) ActiveDashboard() *Dashboard {
	return doc.FindDashboard(doc.ActiveDashboardID)
}

// HasName reports whether any dashboard other than excludeID already
// carries the given name. Matching is case-sensitive.
func (doc *ConfigurationDocument) HasName(name, excludeID string) bool {
	for _, d := range doc.Dashboards {
		if d.ID != excludeID && d.Name == name {
			return true
		}
	}
	return false
}

// Summaries returns the id/name projection of every dashboard in
// document order.
func (doc *ConfigurationDocument) Summaries() []DashboardSummary {
	out := make([]DashboardSummary, 0, len(doc.Dashboards))
	for _, d := range doc.Dashboards {
		out = append(out, DashboardSummary{ID: d.ID, Name: d.Name})
	}
	return out
}
