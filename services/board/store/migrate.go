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
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/google/uuid"
)

// legacyWrapper is the intermediate document shape that predates
// multi-dashboard support: a single implicit dashboard with an optional
// stable id.
type legacyWrapper struct {
	DashboardID string                    `json:"dashboardId"`
	Workflows   []datatypes.WorkflowEntry `json:"workflows"`
	Dashboards  []datatypes.Dashboard     `json:"dashboards"`
	ActiveID    string                    `json:"activeDashboardId"`
}

// DecodeDocument parses stored bytes into the canonical document,
// transparently upgrading the two legacy shapes:
//
//   - a bare JSON array of workflow entries (oldest), and
//   - {dashboardId, workflows: [...]} (pre-multi-dashboard).
//
// Both are wrapped into a single dashboard named
// datatypes.DefaultDashboardName, preserving a legacy dashboardId when
// present. Decoding an already-canonical document is a no-op, so the
// migration is idempotent. JSON that parses but matches none of the
// known shapes migrates to a fresh default document; bytes that do not
// parse at all are a data-corruption error and are never overwritten.
//
// The second return value reports whether a migration happened.
func DecodeDocument(data []byte) (*datatypes.ConfigurationDocument, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return datatypes.NewDefaultDocument(), true, nil
	}

	// Oldest shape: a bare array of workflow entries.
	if trimmed[0] == '[' {
		var entries []datatypes.WorkflowEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, false, fmt.Errorf("legacy workflow array is unparseable: %w", err)
		}
		return wrapLegacy("", entries), true, nil
	}

	var raw legacyWrapper
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, false, fmt.Errorf("configuration document is unparseable: %w", err)
	}

	// Canonical shape: has a dashboards list.
	if raw.Dashboards != nil {
		doc := &datatypes.ConfigurationDocument{
			Dashboards:        raw.Dashboards,
			ActiveDashboardID: raw.ActiveID,
		}
		for i := range doc.Dashboards {
			if doc.Dashboards[i].Workflows == nil {
				doc.Dashboards[i].Workflows = []datatypes.WorkflowEntry{}
			}
		}
		return doc, false, nil
	}

	// Intermediate shape: single implicit dashboard.
	if raw.Workflows != nil {
		return wrapLegacy(raw.DashboardID, raw.Workflows), true, nil
	}

	// Parsed fine but matches no known shape; treat as uninitialized.
	return datatypes.NewDefaultDocument(), true, nil
}

func wrapLegacy(dashboardID string, entries []datatypes.WorkflowEntry) *datatypes.ConfigurationDocument {
	if dashboardID == "" {
		dashboardID = uuid.New().String()
	}
	if entries == nil {
		entries = []datatypes.WorkflowEntry{}
	}
	d := datatypes.Dashboard{
		ID:        dashboardID,
		Name:      datatypes.DefaultDashboardName,
		Workflows: entries,
	}
	return &datatypes.ConfigurationDocument{
		Dashboards:        []datatypes.Dashboard{d},
		ActiveDashboardID: d.ID,
	}
}
