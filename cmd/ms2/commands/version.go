// Copyright © 2024 the ms2 authors
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the version of ms2.
var Version = "unset"

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of ms2",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ms2 version %s\n", Version)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
