// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// End-to-end handler tests over the full route table. Kept in an
// external package so they can use the routes wiring without an import
// cycle.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/FlightBoard/services/board/aggregate"
	"github.com/AleutianAI/FlightBoard/services/board/apperr"
	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/AleutianAI/FlightBoard/services/board/githubapp"
	"github.com/AleutianAI/FlightBoard/services/board/routes"
	"github.com/AleutianAI/FlightBoard/services/board/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	routes.RegisterValidators()
}

// =============================================================================
// Test fixtures
// =============================================================================

// fixedProvider serves one installation and one canned run for every
// workflow under it.
type fixedProvider struct {
	run *datatypes.RunStatus
}

func (p *fixedProvider) ListInstallations(ctx context.Context) ([]githubapp.Installation, error) {
	return []githubapp.Installation{{ID: 7, AccountLogin: "octo"}}, nil
}

func (p *fixedProvider) LatestRun(ctx context.Context, installationID int64, owner, repo, workflow string) (*datatypes.RunStatus, error) {
	return p.run, nil
}

func createTestRouter(t *testing.T) (*gin.Engine, *store.ConfigStore) {
	t.Helper()
	cfg := store.NewConfigStore(store.NewMemoryBlobStore())
	agg := aggregate.New(cfg, &fixedProvider{run: &datatypes.RunStatus{
		Status:     datatypes.StatusCompleted,
		Conclusion: datatypes.ConclusionSuccess,
		URL:        "https://github.com/octo/widgets/actions/runs/1",
	}})

	router := gin.New()
	routes.SetupRoutes(router, cfg, agg, nil)
	return router, cfg
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Message)
	return body.Error
}

// =============================================================================
// Health
// =============================================================================

func TestHealthCheck(t *testing.T) {
	router, _ := createTestRouter(t)
	w := performRequest(router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

// =============================================================================
// Configuration
// =============================================================================

func TestGetConfiguration_Bootstrap(t *testing.T) {
	router, _ := createTestRouter(t)
	w := performRequest(router, http.MethodGet, "/v1/config", nil)

	require.Equal(t, http.StatusOK, w.Code)
	cfg := decodeBody[datatypes.ActiveConfiguration](t, w)
	require.Len(t, cfg.Dashboards, 1)
	assert.Equal(t, "Main Dashboard", cfg.Dashboards[0].Name)
	assert.Empty(t, cfg.Workflows)
}

// =============================================================================
// Workflows
// =============================================================================

func TestAddWorkflow(t *testing.T) {
	router, _ := createTestRouter(t)

	w := performRequest(router, http.MethodPost, "/v1/workflows", datatypes.AddWorkflowRequest{
		Repo: "octo/widgets", Workflow: "ci.yml", Label: "CI",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeBody[datatypes.AddWorkflowResponse](t, w)
	assert.Equal(t, "octo", resp.Workflow.Owner)
	assert.Equal(t, "Main Dashboard", resp.DashboardName)

	// Duplicate add is a conflict.
	w = performRequest(router, http.MethodPost, "/v1/workflows", datatypes.AddWorkflowRequest{
		Repo: "octo/widgets", Workflow: "ci.yml", Label: "Again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errorKind(t, w))
}

func TestAddWorkflow_BadRequests(t *testing.T) {
	router, _ := createTestRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing fields", map[string]string{"repo": "octo/widgets"}},
		{"bad workflow ref", datatypes.AddWorkflowRequest{Repo: "octo/widgets", Workflow: "ci.txt", Label: "CI"}},
		{"bad repo shape", datatypes.AddWorkflowRequest{Repo: "widgets", Workflow: "ci.yml", Label: "CI"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(router, http.MethodPost, "/v1/workflows", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_error", errorKind(t, w))
		})
	}
}

func TestAddWorkflow_MalformedJSON(t *testing.T) {
	router, _ := createTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorKind(t, w))
}

func TestRemoveWorkflow(t *testing.T) {
	router, _ := createTestRouter(t)
	performRequest(router, http.MethodPost, "/v1/workflows", datatypes.AddWorkflowRequest{
		Repo: "octo/widgets", Workflow: "ci.yml", Label: "CI",
	})

	w := performRequest(router, http.MethodDelete, "/v1/workflows", datatypes.RemoveWorkflowRequest{
		Repo: "octo/widgets", Workflow: "ci.yml",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[datatypes.RemoveWorkflowResponse](t, w)
	assert.Equal(t, "CI", resp.Removed.Label)

	// Removing it again is a 404.
	w = performRequest(router, http.MethodDelete, "/v1/workflows", datatypes.RemoveWorkflowRequest{
		Repo: "octo/widgets", Workflow: "ci.yml",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorKind(t, w))
}

func TestReorderWorkflows(t *testing.T) {
	router, _ := createTestRouter(t)
	for _, wf := range []string{"a.yml", "b.yml"} {
		performRequest(router, http.MethodPost, "/v1/workflows", datatypes.AddWorkflowRequest{
			Repo: "octo/widgets", Workflow: wf, Label: wf,
		})
	}

	w := performRequest(router, http.MethodPost, "/v1/workflows/reorder", datatypes.ReorderWorkflowsRequest{
		Workflows: []datatypes.WorkflowKey{
			{Owner: "octo", Repo: "widgets", Workflow: "b.yml"},
			{Owner: "octo", Repo: "widgets", Workflow: "a.yml"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	cfg := decodeBody[datatypes.ActiveConfiguration](t,
		performRequest(router, http.MethodGet, "/v1/config", nil))
	require.Len(t, cfg.Workflows, 2)
	assert.Equal(t, "b.yml", cfg.Workflows[0].Workflow)

	// Partial permutations are rejected.
	w = performRequest(router, http.MethodPost, "/v1/workflows/reorder", datatypes.ReorderWorkflowsRequest{
		Workflows: []datatypes.WorkflowKey{
			{Owner: "octo", Repo: "widgets", Workflow: "a.yml"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", errorKind(t, w))
}

// =============================================================================
// Dashboards
// =============================================================================

func TestDashboardLifecycle(t *testing.T) {
	router, _ := createTestRouter(t)

	// Create.
	w := performRequest(router, http.MethodPost, "/v1/dashboards", datatypes.CreateDashboardRequest{
		Name: "Release",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[datatypes.DashboardResponse](t, w)
	assert.False(t, created.IsActive)

	// Duplicate name.
	w = performRequest(router, http.MethodPost, "/v1/dashboards", datatypes.CreateDashboardRequest{
		Name: "Release",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Switch to it.
	w = performRequest(router, http.MethodPost, "/v1/dashboards/active", datatypes.DashboardIDRequest{
		DashboardID: created.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[datatypes.DashboardResponse](t, w).IsActive)

	// Rename it.
	w = performRequest(router, http.MethodPost, "/v1/dashboards/rename", datatypes.RenameDashboardRequest{
		DashboardID: created.ID, Name: "Production",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Production", decodeBody[datatypes.DashboardResponse](t, w).Name)

	// Delete it; the remaining dashboard becomes active.
	w = performRequest(router, http.MethodDelete, "/v1/dashboards", datatypes.DashboardIDRequest{
		DashboardID: created.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	deleted := decodeBody[datatypes.DeleteDashboardResponse](t, w)
	assert.NotEqual(t, created.ID, deleted.ActiveDashboardID)

	// The survivor cannot be deleted.
	w = performRequest(router, http.MethodDelete, "/v1/dashboards", datatypes.DashboardIDRequest{
		DashboardID: deleted.ActiveDashboardID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboard_UnknownID(t *testing.T) {
	router, _ := createTestRouter(t)

	w := performRequest(router, http.MethodPost, "/v1/dashboards/active", datatypes.DashboardIDRequest{
		DashboardID: "no-such-id",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorKind(t, w))

	w = performRequest(router, http.MethodPost, "/v1/dashboards/rename", datatypes.RenameDashboardRequest{
		DashboardID: "no-such-id", Name: "X",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// Statuses
// =============================================================================

func TestGetStatuses(t *testing.T) {
	router, _ := createTestRouter(t)
	performRequest(router, http.MethodPost, "/v1/workflows", datatypes.AddWorkflowRequest{
		Repo: "octo/widgets", Workflow: "ci.yml", Label: "CI",
	})

	w := performRequest(router, http.MethodGet, "/v1/statuses", nil)
	require.Equal(t, http.StatusOK, w.Code)

	board := decodeBody[datatypes.BoardStatus](t, w)
	assert.Equal(t, 1, board.Count)
	assert.NotEmpty(t, board.Timestamp)
	require.Len(t, board.Workflows, 1)
	assert.Equal(t, datatypes.DisplayPassing, board.Workflows[0].Display)
	assert.Equal(t, "https://github.com/octo/widgets/actions/runs/1", board.Workflows[0].URL)
}

func TestGetStatuses_InfrastructureFailure(t *testing.T) {
	blobs := store.NewMemoryBlobStore()
	require.NoError(t, blobs.Put(context.Background(), store.DefaultBlobKey, []byte("{corrupt"), 0))
	cfg := store.NewConfigStore(blobs)
	agg := aggregate.New(cfg, &fixedProvider{})

	router := gin.New()
	routes.SetupRoutes(router, cfg, agg, nil)

	w := performRequest(router, http.MethodGet, "/v1/statuses", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "infrastructure_error", errorKind(t, w))
}

// =============================================================================
// Verification gate
// =============================================================================

type denyingVerifier struct{}

func (denyingVerifier) VerifyWorkflow(ctx context.Context, owner, repo, workflow string) error {
	return apperr.New(apperr.KindUpstreamNotFound, "app is not installed for owner %q", owner)
}

func TestAddWorkflow_VerifierGate(t *testing.T) {
	cfg := store.NewConfigStore(store.NewMemoryBlobStore())
	agg := aggregate.New(cfg, &fixedProvider{})
	router := gin.New()
	routes.SetupRoutes(router, cfg, agg, denyingVerifier{})

	w := performRequest(router, http.MethodPost, "/v1/workflows", datatypes.AddWorkflowRequest{
		Repo: "octo/widgets", Workflow: "ci.yml", Label: "CI",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "upstream_not_found", errorKind(t, w))

	// Nothing persisted.
	config := decodeBody[datatypes.ActiveConfiguration](t,
		performRequest(router, http.MethodGet, "/v1/config", nil))
	assert.Empty(t, config.Workflows)
}
