// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the guacctl CLI: cobra commands wiring confengine's
// YAML config, a tunnel variant, and a client.Client together, plus the
// admin server from package server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "guacctl",
	Short: "A Guacamole protocol client",
	Long: `guacctl drives a remote-desktop connection over the Guacamole
wire protocol: it completes the handshake, keeps the connection alive,
and hands every decoded instruction to caller-supplied sinks instead of
rendering anything itself.`,
}

// Execute runs the root command; main calls this and exits non-zero on
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
