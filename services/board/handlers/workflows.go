// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/AleutianAI/FlightBoard/services/board/store"
	"github.com/gin-gonic/gin"
)

// AddWorkflow handles POST /v1/workflows. The verifier is the optional
// add-time upstream check; pass nil to persist without verification.
func AddWorkflow(cfg *store.ConfigStore, verifier store.WorkflowVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AddWorkflowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBinding(c, err)
			return
		}
		slog.Info("add workflow requested", "repo", req.Repo, "workflow", req.Workflow)

		resp, err := cfg.AddWorkflow(c.Request.Context(), req, verifier)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// RemoveWorkflow handles DELETE /v1/workflows.
func RemoveWorkflow(cfg *store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RemoveWorkflowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBinding(c, err)
			return
		}
		slog.Info("remove workflow requested", "repo", req.Repo, "workflow", req.Workflow)

		resp, err := cfg.RemoveWorkflow(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ReorderWorkflows handles POST /v1/workflows/reorder.
func ReorderWorkflows(cfg *store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ReorderWorkflowsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBinding(c, err)
			return
		}

		resp, err := cfg.ReorderWorkflows(c.Request.Context(), req.Workflows)
		if err != nil {
			fail(c, err)
			return
		}
		slog.Info("workflows reordered", "count", resp.Count, "dashboardId", resp.DashboardID)
		c.JSON(http.StatusOK, resp)
	}
}
