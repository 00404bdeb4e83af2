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

// Run status values. The first three come straight from the Actions API;
// "error" is synthesized when a fetch fails, "unknown" when a workflow
// has no runs or no resolvable installation.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusUnknown    = "unknown"
)

// Run conclusion values. Empty string stands in for the API's null
// (a run that completed without a conclusion, or has not concluded).
const (
	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled"
	ConclusionSkipped   = "skipped"
	ConclusionTimedOut  = "timed_out"
	ConclusionNone      = ""
	ConclusionError     = "error"
	ConclusionUnknown   = "unknown"
)

// Display buckets produced by DisplayState.
const (
	DisplayPassing   = "passing"
	DisplayFailing   = "failing"
	DisplayRunning   = "running"
	DisplayNotRun    = "not run"
	DisplayCancelled = "cancelled"
	DisplaySkipped   = "skipped"
	DisplayNoRuns    = "no runs"
	DisplayError     = "error"
	DisplayUnknown   = "unknown"
)

// RunStatus is the latest-run answer from the upstream provider for one
// workflow: raw status/conclusion plus a link and an optional timestamp.
type RunStatus struct {
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	URL        string `json:"url"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// WorkflowStatus joins a configured entry with its live run status.
type WorkflowStatus struct {
	WorkflowEntry
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	URL        string `json:"url"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
	Display    string `json:"display"`

	// Error carries the human-readable reason for a synthesized
	// error/unavailable status. Empty on live statuses.
	Error string `json:"error,omitempty"`
}

// DisplayState maps a (status, conclusion) pair to its display bucket.
// Total over every combination: anything not enumerated lands in
// DisplayUnknown instead of failing.
func DisplayState(status, conclusion string) string {
	switch status {
	case StatusQueued, StatusInProgress:
		return DisplayRunning
	case StatusCompleted:
		switch conclusion {
		case ConclusionSuccess:
			return DisplayPassing
		case ConclusionFailure:
			return DisplayFailing
		case ConclusionCancelled:
			return DisplayCancelled
		case ConclusionSkipped:
			return DisplaySkipped
		case ConclusionNone:
			return DisplayNotRun
		default:
			return DisplayUnknown
		}
	case StatusError:
		return DisplayError
	case StatusUnknown:
		return DisplayNoRuns
	default:
		return DisplayUnknown
	}
}
