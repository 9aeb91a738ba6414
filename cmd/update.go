// Package cmd implements the command-line interface for dotkeep.
package cmd

import (
	"fmt"

	"github.com/dotkeep-cli/dotkeep/color"
	"github.com/dotkeep-cli/dotkeep/icon"
	"github.com/dotkeep-cli/dotkeep/style"
	"github.com/dotkeep-cli/dotkeep/update"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolP("dry-run", "n", false, "Report the update plan without mutating anything")
	updateCmd.Flags().BoolP("force", "f", false, "Apply even when already up to date or the tree is dirty")
}

// updateCmd fast-forwards the tracked tree to the latest remote version.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fast-forward the tracked tree to the latest remote version",
	Long: "Fast-forward the tracked tree to the latest remote version.\n" +
		"The full tree and the auxiliary configuration are backed up before anything is applied.",
	Run: func(cmd *cobra.Command, args []string) {
		options := update.Options{
			DryRun: lo.Must(cmd.Flags().GetBool("dry-run")),
			Force:  lo.Must(cmd.Flags().GetBool("force")),
		}

		result, err := update.New().Run(options)

		for _, warning := range result.Warnings {
			fmt.Printf("%s %s\n", icon.Get(icon.Warning), warning)
		}

		switch result.State {
		case update.StateUpToDate:
			fmt.Printf(
				"%s already up to date at %s\n",
				style.Fg(color.Green)(icon.Get(icon.Success)),
				style.Fg(color.Purple)(result.Local),
			)
		case update.StatePreparing:
			// Dry run stops here by design of the workflow.
			fmt.Printf(
				"%s would update %s %s %s\n",
				icon.Get(icon.Update),
				style.Fg(color.Purple)(result.Local),
				style.Faint("->"),
				style.Fg(color.Purple)(result.Remote),
			)
		case update.StateDone:
			fmt.Printf(
				"%s updated %s %s %s\n",
				style.Fg(color.Green)(icon.Get(icon.Update)),
				style.Fg(color.Purple)(result.Local),
				style.Faint("->"),
				style.Fg(color.Purple)(result.Remote),
			)
			if result.Backup != nil {
				fmt.Printf(
					"%s backup %s available for rollback\n",
					icon.Get(icon.Backup),
					style.Fg(color.Purple)(result.Backup.ID),
				)
			}
		}

		handleErr(err)
	},
}
