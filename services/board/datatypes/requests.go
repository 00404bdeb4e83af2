// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// AddWorkflowRequest is the body of POST /v1/workflows.
// Repo is the combined "owner/repo" form; Workflow is validated by the
// custom workflowref binding (numeric id or .yml/.yaml filename).
type AddWorkflowRequest struct {
	Repo     string `json:"repo" binding:"required"`
	Workflow string `json:"workflow" binding:"required,workflowref"`
	Label    string `json:"label" binding:"required"`
}

// RemoveWorkflowRequest is the body of DELETE /v1/workflows.
type RemoveWorkflowRequest struct {
	Repo     string `json:"repo" binding:"required"`
	Workflow string `json:"workflow" binding:"required,workflowref"`
}

// ReorderWorkflowsRequest is the body of POST /v1/workflows/reorder.
// The list must be a full permutation of the active dashboard's entries.
type ReorderWorkflowsRequest struct {
	Workflows []WorkflowKey `json:"workflows" binding:"required"`
}

// CreateDashboardRequest is the body of POST /v1/dashboards.
type CreateDashboardRequest struct {
	Name        string `json:"name" binding:"required"`
	SetAsActive bool   `json:"setAsActive"`
}

// RenameDashboardRequest is the body of POST /v1/dashboards/rename.
type RenameDashboardRequest struct {
	DashboardID string `json:"dashboardId" binding:"required"`
	Name        string `json:"name" binding:"required"`
}

// DashboardIDRequest is the body of DELETE /v1/dashboards and
// POST /v1/dashboards/active.
type DashboardIDRequest struct {
	DashboardID string `json:"dashboardId" binding:"required"`
}

// ActiveConfiguration is the payload of GET /v1/config: the dashboard
// selector plus the active dashboard's entries, without live status.
type ActiveConfiguration struct {
	Dashboards        []DashboardSummary `json:"dashboards"`
	ActiveDashboardID string             `json:"activeDashboardId"`
	Workflows         []WorkflowEntry    `json:"workflows"`
}

// AddWorkflowResponse is returned by a successful add-workflow.
type AddWorkflowResponse struct {
	Workflow      WorkflowEntry `json:"workflow"`
	DashboardID   string        `json:"dashboardId"`
	DashboardName string        `json:"dashboardName"`
}

// RemoveWorkflowResponse is returned by a successful remove-workflow.
type RemoveWorkflowResponse struct {
	Removed WorkflowEntry `json:"removed"`
}

// ReorderWorkflowsResponse is returned by a successful reorder.
type ReorderWorkflowsResponse struct {
	Count       int    `json:"count"`
	DashboardID string `json:"dashboardId"`
}

// DashboardResponse is returned by create/rename/set-active.
type DashboardResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// DeleteDashboardResponse is returned by a successful delete-dashboard.
type DeleteDashboardResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ActiveDashboardID string `json:"activeDashboardId"`
}

// BoardStatus is the payload of GET /v1/statuses and of each websocket
// stream frame: the selector pass-through plus one status per entry of
// the active dashboard, in configuration order.
type BoardStatus struct {
	Dashboards        []DashboardSummary `json:"dashboards"`
	ActiveDashboardID string             `json:"activeDashboardId"`
	Workflows         []WorkflowStatus   `json:"workflows"`
	Timestamp         string             `json:"timestamp"`
	Count             int                `json:"count"`
}
