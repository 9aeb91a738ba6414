// Package cmd implements the command-line interface for dotkeep.
package cmd

import (
	"fmt"

	"github.com/dotkeep-cli/dotkeep/backup"
	"github.com/dotkeep-cli/dotkeep/color"
	"github.com/dotkeep-cli/dotkeep/icon"
	"github.com/dotkeep-cli/dotkeep/rollback"
	"github.com/dotkeep-cli/dotkeep/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().BoolP("dry-run", "n", false, "Validate the target and report the plan without mutating anything")
	rollbackCmd.Flags().BoolP("force", "f", false, "Skip the interactive confirmation")
	rollbackCmd.Flags().Bool("preserve-config", false, "Snapshot the auxiliary configuration so it survives the rollback")
	rollbackCmd.Flags().Bool("restore-config", false, "Roll the auxiliary configuration back to its most recent snapshot")
	rollbackCmd.Flags().BoolP("verbose", "V", false, "List the files the rollback touches")

	rollbackCmd.MarkFlagsMutuallyExclusive("preserve-config", "restore-config")
}

// rollbackCmd replaces the tracked tree with the contents of an archived backup.
var rollbackCmd = &cobra.Command{
	Use:   "rollback [id]",
	Short: "Replace the tracked tree with the contents of an archived backup",
	Long: "Replace the tracked tree with the contents of an archived backup.\n" +
		"The identifier may be a backup ID, a path to an archive, or one of \"latest\" and \"previous\".\n" +
		"A safety backup of the current tree is taken first, so the rollback itself can be undone.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		options := rollback.Options{
			ID:     args[0],
			DryRun: lo.Must(cmd.Flags().GetBool("dry-run")),
			Force:  lo.Must(cmd.Flags().GetBool("force")),
		}
		if lo.Must(cmd.Flags().GetBool("restore-config")) {
			options.ConfigMode = rollback.ConfigRestore
		}

		result, err := rollback.New().Run(options)

		for _, warning := range result.Warnings {
			fmt.Printf("%s %s\n", icon.Get(icon.Warning), warning)
		}

		if lo.Must(cmd.Flags().GetBool("verbose")) && result.Target != nil {
			if manifest, mErr := backup.LoadManifest(result.Target); mErr == nil {
				for _, file := range manifest.Files {
					fmt.Println(style.Faint(file))
				}
			}
		}

		switch result.State {
		case rollback.StateValidating:
			if err == nil {
				fmt.Printf(
					"%s would roll back to %s\n",
					icon.Get(icon.Rollback),
					style.Fg(color.Purple)(result.Target.String()),
				)
			}
		case rollback.StateDone, rollback.StateDegraded:
			fmt.Printf(
				"%s rolled back to %s\n",
				style.Fg(color.Green)(icon.Get(icon.Rollback)),
				style.Fg(color.Purple)(result.Target.ID),
			)
			if result.SafetyBackup != nil {
				fmt.Printf(
					"%s safety backup %s available\n",
					icon.Get(icon.Backup),
					style.Fg(color.Purple)(result.SafetyBackup.ID),
				)
			}
		}

		handleErr(err)
	},
}
