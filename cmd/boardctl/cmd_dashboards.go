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

	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Manage dashboards",
}

var dashboardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dashboards and the active dashboard's workflows",
	Run: func(cmd *cobra.Command, args []string) {
		var cfg datatypes.ActiveConfiguration
		if err := callAPI(http.MethodGet, "/v1/config", nil, &cfg); err != nil {
			log.Fatalf("Failed to fetch configuration: %v", err)
		}
		for _, d := range cfg.Dashboards {
			marker := " "
			if d.ID == cfg.ActiveDashboardID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s\n", marker, d.ID, d.Name)
		}
		for _, w := range cfg.Workflows {
			fmt.Printf("    %s  %s/%s %s\n", w.Label, w.Owner, w.Repo, w.Workflow)
		}
	},
}

var createActiveFlag bool

var dashboardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new dashboard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var resp datatypes.DashboardResponse
		req := datatypes.CreateDashboardRequest{Name: args[0], SetAsActive: createActiveFlag}
		if err := callAPI(http.MethodPost, "/v1/dashboards", req, &resp); err != nil {
			log.Fatalf("Failed to create dashboard: %v", err)
		}
		fmt.Printf("Created dashboard %q (%s), active=%t\n", resp.Name, resp.ID, resp.IsActive)
	},
}

var dashboardRenameCmd = &cobra.Command{
	Use:   "rename <dashboard-id> <new-name>",
	Short: "Rename a dashboard",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var resp datatypes.DashboardResponse
		req := datatypes.RenameDashboardRequest{DashboardID: args[0], Name: args[1]}
		if err := callAPI(http.MethodPost, "/v1/dashboards/rename", req, &resp); err != nil {
			log.Fatalf("Failed to rename dashboard: %v", err)
		}
		fmt.Printf("Renamed dashboard %s to %q\n", resp.ID, resp.Name)
	},
}

var dashboardDeleteCmd = &cobra.Command{
	Use:   "delete <dashboard-id>",
	Short: "Delete a dashboard (the last one cannot be deleted)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var resp datatypes.DeleteDashboardResponse
		req := datatypes.DashboardIDRequest{DashboardID: args[0]}
		if err := callAPI(http.MethodDelete, "/v1/dashboards", req, &resp); err != nil {
			log.Fatalf("Failed to delete dashboard: %v", err)
		}
		fmt.Printf("Deleted %q, active dashboard is now %s\n", resp.Name, resp.ActiveDashboardID)
	},
}

var dashboardUseCmd = &cobra.Command{
	Use:   "use <dashboard-id>",
	Short: "Switch the active dashboard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var resp datatypes.DashboardResponse
		req := datatypes.DashboardIDRequest{DashboardID: args[0]}
		if err := callAPI(http.MethodPost, "/v1/dashboards/active", req, &resp); err != nil {
			log.Fatalf("Failed to switch dashboard: %v", err)
		}
		fmt.Printf("Active dashboard is now %q (%s)\n", resp.Name, resp.ID)
	},
}

func init() {
	dashboardCreateCmd.Flags().BoolVar(&createActiveFlag, "active", false,
		"make the new dashboard active")
	dashboardCmd.AddCommand(dashboardListCmd, dashboardCreateCmd, dashboardRenameCmd,
		dashboardDeleteCmd, dashboardUseCmd)
	rootCmd.AddCommand(dashboardCmd)
}
