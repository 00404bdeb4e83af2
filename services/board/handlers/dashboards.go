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

// GetConfiguration handles GET /v1/config: the dashboard selector plus
// the active dashboard's workflow entries, without live status.
func GetConfiguration(cfg *store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := cfg.GetActiveConfiguration(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// CreateDashboard handles POST /v1/dashboards.
func CreateDashboard(cfg *store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateDashboardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBinding(c, err)
			return
		}

		resp, err := cfg.CreateDashboard(c.Request.Context(), req.Name, req.SetAsActive)
		if err != nil {
			fail(c, err)
			return
		}
		slog.Info("dashboard created", "id", resp.ID, "name", resp.Name, "active", resp.IsActive)
		c.JSON(http.StatusCreated, resp)
	}
}

// RenameDashboard handles POST /v1/dashboards/rename.
func RenameDashboard(cfg *store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RenameDashboardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBinding(c, err)
			return
		}

		resp, err := cfg.RenameDashboard(c.Request.Context(), req.DashboardID, req.Name)
		if err != nil {
			fail(c, err)
			return
		}
		slog.Info("dashboard renamed", "id", resp.ID, "name", resp.Name)
		c.JSON(http.StatusOK, resp)
	}
}

// DeleteDashboard handles DELETE /v1/dashboards.
func DeleteDashboard(cfg *store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DashboardIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBinding(c, err)
			return
		}

		resp, err := cfg.DeleteDashboard(c.Request.Context(), req.DashboardID)
		if err != nil {
			fail(c, err)
			return
		}
		slog.Info("dashboard deleted", "id", resp.ID, "newActive", resp.ActiveDashboardID)
		c.JSON(http.StatusOK, resp)
	}
}

// SetActiveDashboard handles POST /v1/dashboards/active.
func SetActiveDashboard(cfg *store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DashboardIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBinding(c, err)
			return
		}

		resp, err := cfg.SetActiveDashboard(c.Request.Context(), req.DashboardID)
		if err != nil {
			fail(c, err)
			return
		}
		slog.Info("active dashboard switched", "id", resp.ID, "name", resp.Name)
		c.JSON(http.StatusOK, resp)
	}
}
