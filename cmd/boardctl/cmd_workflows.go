// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live status of the active dashboard",
	Run: func(cmd *cobra.Command, args []string) {
		var board datatypes.BoardStatus
		if err := callAPI(http.MethodGet, "/v1/statuses", nil, &board); err != nil {
			log.Fatalf("Failed to fetch statuses: %v", err)
		}
		fmt.Printf("Dashboard %s (%d workflows, as of %s)\n",
			board.ActiveDashboardID, board.Count, board.Timestamp)
		for _, w := range board.Workflows {
			line := fmt.Sprintf("  [%-9s] %s  %s/%s %s", w.Display, w.Label, w.Owner, w.Repo, w.Workflow)
			if w.Error != "" {
				line += "  (" + w.Error + ")"
			}
			fmt.Println(line)
		}
	},
}

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage workflows on the active dashboard",
}

var workflowAddCmd = &cobra.Command{
	Use:   "add <owner/repo> <workflow> <label>",
	Short: "Add a workflow to the active dashboard",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		var resp datatypes.AddWorkflowResponse
		req := datatypes.AddWorkflowRequest{Repo: args[0], Workflow: args[1], Label: args[2]}
		if err := callAPI(http.MethodPost, "/v1/workflows", req, &resp); err != nil {
			log.Fatalf("Failed to add workflow: %v", err)
		}
		fmt.Printf("Added %s to dashboard %q\n", resp.Workflow.Label, resp.DashboardName)
	},
}

var workflowRemoveCmd = &cobra.Command{
	Use:   "remove <owner/repo> <workflow>",
	Short: "Remove a workflow from the active dashboard",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var resp datatypes.RemoveWorkflowResponse
		req := datatypes.RemoveWorkflowRequest{Repo: args[0], Workflow: args[1]}
		if err := callAPI(http.MethodDelete, "/v1/workflows", req, &resp); err != nil {
			log.Fatalf("Failed to remove workflow: %v", err)
		}
		fmt.Printf("Removed %s (%s/%s %s)\n", resp.Removed.Label,
			resp.Removed.Owner, resp.Removed.Repo, resp.Removed.Workflow)
	},
}

var workflowReorderCmd = &cobra.Command{
	Use:   "reorder <owner/repo:workflow> ...",
	Short: "Reorder the active dashboard's workflows",
	Long: "Reorder the active dashboard. Every workflow must be listed exactly once,\n" +
		"each as owner/repo:workflow, in the desired order.",
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		keys := make([]datatypes.WorkflowKey, 0, len(args))
		for _, arg := range args {
			repoPart, workflow, ok := strings.Cut(arg, ":")
			if !ok {
				log.Fatalf("Invalid reference %q, want owner/repo:workflow", arg)
			}
			owner, repo, ok := strings.Cut(repoPart, "/")
			if !ok {
				log.Fatalf("Invalid reference %q, want owner/repo:workflow", arg)
			}
			keys = append(keys, datatypes.WorkflowKey{Owner: owner, Repo: repo, Workflow: workflow})
		}
		var resp datatypes.ReorderWorkflowsResponse
		req := datatypes.ReorderWorkflowsRequest{Workflows: keys}
		if err := callAPI(http.MethodPost, "/v1/workflows/reorder", req, &resp); err != nil {
			log.Fatalf("Failed to reorder workflows: %v", err)
		}
		fmt.Printf("Reordered %d workflows\n", resp.Count)
	},
}

func init() {
	workflowCmd.AddCommand(workflowAddCmd, workflowRemoveCmd, workflowReorderCmd)
	rootCmd.AddCommand(statusCmd, workflowCmd)
}
