// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// boardctl is the operator CLI for the FlightBoard service. It is a
// thin client over the board's HTTP API; all business rules live
// server-side.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the boardctl configuration, read from config.yaml next to
// the binary or overridden by the --server flag.
type Config struct {
	// Server is the base URL of the board service.
	Server string `yaml:"server"`
}

var config = Config{Server: "http://localhost:12280"}

var serverFlag string

var rootCmd = &cobra.Command{
	Use:   "boardctl",
	Short: "Manage FlightBoard dashboards and workflows",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "board service base URL")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if yamlFile, err := os.ReadFile("config.yaml"); err == nil {
			if err := yaml.Unmarshal(yamlFile, &config); err != nil {
				log.Fatalf("Error parsing config.yaml: %v", err)
			}
		}
		if serverFlag != "" {
			config.Server = serverFlag
		}
	}
}
