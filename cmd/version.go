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

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guacd/gcore/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the guacctl version",
	Run: func(cmd *cobra.Command, args []string) {
		info := common.GetBuildInfo()
		version := info.Version
		if version == "" {
			version = common.Version
		}
		fmt.Printf("guacctl %s\n", version)
		if info.GitHash != "" {
			fmt.Printf("  commit: %s\n", info.GitHash)
		}
		if info.Time != "" {
			fmt.Printf("  built:  %s\n", info.Time)
		}
		fmt.Printf("  up:     %s\n", time.Since(time.Unix(common.Started(), 0)).Round(time.Second))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
