package cmd

import (
	"github.com/spf13/cobra"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Roster management commands",
	Long:  `Commands for importing and inspecting class rosters.`,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
}
