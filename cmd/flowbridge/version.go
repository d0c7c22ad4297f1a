// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// set at build time via ldflags
var (
	buildVersion = "dev"
	buildCommit  string
	buildDate    string
)

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

var shortened bool
var output string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of FlowBridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		if shortened {
			cmd.Println(buildVersion)
			return nil
		}
		info := &versionInfo{
			Version: buildVersion,
			Commit:  buildCommit,
			Date:    buildDate,
		}
		var (
			data []byte
			err  error
		)
		switch output {
		case "json":
			data, err = json.MarshalIndent(info, "", "  ")
		case "yaml":
			data, err = yaml.Marshal(info)
		default:
			err = i18n.NewError(cmd.Context(), msgs.MsgCmdInvalidOutputType, output)
		}
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&shortened, "short", "s", false, "Print only the version number")
	versionCmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json or yaml)")
	rootCmd.AddCommand(versionCmd)
}
