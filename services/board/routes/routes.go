// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the board service's endpoints.
package routes

import (
	"net/http"

	"github.com/AleutianAI/FlightBoard/services/board/aggregate"
	"github.com/AleutianAI/FlightBoard/services/board/handlers"
	"github.com/AleutianAI/FlightBoard/services/board/store"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterValidators installs the custom binding validations used by
// the request types. Call once before serving.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("workflowref", func(fl validator.FieldLevel) bool {
			return store.ValidWorkflowRef(fl.Field().String())
		})
	}
}

// SetupRoutes registers every endpoint. verifier may be nil to disable
// the add-time upstream check.
func SetupRoutes(router *gin.Engine, cfg *store.ConfigStore, agg *aggregate.Aggregator,
	verifier store.WorkflowVerifier) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.StaticFS("/ui", http.Dir("/app/ui"))

	v1 := router.Group("/v1")
	{
		v1.GET("/config", handlers.GetConfiguration(cfg))
		v1.GET("/statuses", handlers.GetStatuses(agg))
		v1.GET("/statuses/ws", handlers.StatusStream(agg))

		v1.POST("/workflows", handlers.AddWorkflow(cfg, verifier))
		v1.DELETE("/workflows", handlers.RemoveWorkflow(cfg))
		v1.POST("/workflows/reorder", handlers.ReorderWorkflows(cfg))

		dashboards := v1.Group("/dashboards")
		{
			dashboards.POST("", handlers.CreateDashboard(cfg))
			dashboards.POST("/rename", handlers.RenameDashboard(cfg))
			dashboards.DELETE("", handlers.DeleteDashboard(cfg))
			dashboards.POST("/active", handlers.SetActiveDashboard(cfg))
		}
	}
}
