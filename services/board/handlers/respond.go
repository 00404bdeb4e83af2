// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers of the board service.
// Every error response is {"error": <kind>, "message": <human text>};
// only the kind is stable for program matching.
package handlers

import (
	"log/slog"

	"github.com/AleutianAI/FlightBoard/services/board/apperr"
	"github.com/gin-gonic/gin"
)

// fail writes the uniform error body for err and logs infrastructure
// and invariant faults loudly; caller faults stay at debug noise level.
func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindInfrastructure:
		slog.Error("request failed on infrastructure", "path", c.FullPath(), "error", err)
	case apperr.KindInvariant:
		slog.Error("invariant violation", "path", c.FullPath(), "error", err)
	default:
		slog.Debug("request rejected", "path", c.FullPath(), "kind", string(kind), "error", err)
	}
	c.JSON(apperr.HTTPStatus(kind), gin.H{
		"error":   string(kind),
		"message": apperr.MessageOf(err),
	})
}

// failBinding reports a request-body binding failure as a validation
// error with the binder's reason.
func failBinding(c *gin.Context, err error) {
	fail(c, apperr.Validation("invalid request body: %v", err))
}
