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
	"strconv"
	"time"

	"github.com/AleutianAI/FlightBoard/services/board/aggregate"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	defaultStreamInterval = 30 * time.Second
	minStreamInterval     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	// Origin policy is delegated to the hosting layer.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatusStream handles GET /v1/statuses/ws: pushes the same payload as
// GET /v1/statuses on a fixed interval until the client disconnects.
// The interval comes from the "interval" query parameter in seconds,
// floored at minStreamInterval.
func StatusStream(agg *aggregate.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		interval := defaultStreamInterval
		if raw := c.Query("interval"); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil {
				interval = time.Duration(secs) * time.Second
			}
		}
		if interval < minStreamInterval {
			interval = minStreamInterval
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("status stream client connected", "interval", interval)

		// Reads are only consumed to notice the close frame.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			board, err := agg.Collect(c.Request.Context())
			if err != nil {
				// Infra errors go to the client as a frame, then retry
				// on the next tick; the stream itself stays up.
				slog.Error("status collection failed", "error", err)
				if writeErr := ws.WriteJSON(gin.H{"error": "infrastructure_error",
					"message": "status collection failed"}); writeErr != nil {
					return
				}
			} else if err := ws.WriteJSON(board); err != nil {
				slog.Info("status stream client disconnected", "error", err.Error())
				return
			}

			select {
			case <-done:
				return
			case <-c.Request.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}
