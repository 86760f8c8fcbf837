package cmd

import (
	"fmt"

	"github.com/marcus/worklog/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version and check for updates",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Print(versionStr)
			return
		}
		fmt.Printf("worklog version %s\n", versionStr)

		if check, _ := cmd.Flags().GetBool("check"); !check {
			return
		}
		// Network errors are not worth reporting here.
		result := version.CheckCached(versionStr)
		if result.Error != nil || !result.HasUpdate {
			return
		}
		fmt.Printf("\nUpdate available: %s → %s\n", versionStr, result.LatestVersion)
		if update := version.UpdateCommand(result.LatestVersion); update != "" {
			fmt.Printf("Run: %s\n", update)
		}
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "print only the version string")
	versionCmd.Flags().Bool("check", true, "check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}
