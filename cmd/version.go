package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anoixa/mediastore/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		commit := config.CommitHash
		if commit == "" {
			commit = "unknown"
		}
		fmt.Printf("mediastore %s (%s)\n", config.Version, commit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
