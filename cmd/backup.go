// Package cmd implements the command-line interface for dotkeep.
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/dotkeep-cli/dotkeep/backup"
	"github.com/dotkeep-cli/dotkeep/color"
	"github.com/dotkeep-cli/dotkeep/icon"
	"github.com/dotkeep-cli/dotkeep/style"
	"github.com/dotkeep-cli/dotkeep/tree"
	"github.com/dotkeep-cli/dotkeep/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func completionBackupKinds(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return lo.Map(backup.Kinds(), func(k backup.Kind, _ int) string {
		return string(k)
	}), cobra.ShellCompDirectiveNoFileComp
}

// kindFlag parses the --kind flag into a registry kind, rejecting unknown names.
func kindFlag(cmd *cobra.Command) backup.Kind {
	name := lo.Must(cmd.Flags().GetString("kind"))

	kind := backup.Kind(name)
	if !lo.Contains(backup.Kinds(), kind) {
		handleErr(fmt.Errorf("unknown backup kind %s", style.Fg(color.Red)(name)))
	}
	return kind
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

// backupCmd serves as the parent command for managing backup registries.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage point-in-time backups of the tracked dotfiles tree",
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCreateCmd.Flags().StringSliceP("target", "t", []string{}, "Specify the files to capture instead of the full tracked set")
}

// backupCreateCmd captures a manual backup of the tracked tree or selected files.
var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Capture a manual backup of the tracked tree",
	Run: func(cmd *cobra.Command, args []string) {
		targets := lo.Must(cmd.Flags().GetStringSlice("target"))

		if len(targets) == 0 {
			files, err := tree.Default().Files()
			handleErr(err)
			targets = files
		}

		e := util.PrintErasable(fmt.Sprintf("%s Capturing %s...", icon.Get(icon.Progress), util.Quantify(len(targets), "file", "files")))
		b, err := backup.Create(targets, backup.KindManual)
		e()
		handleErr(err)

		fmt.Printf(
			"%s created backup %s capturing %s\n",
			style.Fg(color.Green)(icon.Get(icon.Backup)),
			style.Fg(color.Purple)(b.ID),
			util.Quantify(len(b.Manifest.Files), "file", "files"),
		)
	},
}

func init() {
	backupCmd.AddCommand(backupListCmd)
	backupListCmd.Flags().StringP("kind", "k", string(backup.KindManual), "The backup registry to enumerate")
	backupListCmd.Flags().BoolP("json", "j", false, "Format the output as a JSON string")
	_ = backupListCmd.RegisterFlagCompletionFunc("kind", completionBackupKinds)
}

// backupListCmd enumerates the backups present in a registry, newest first.
var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "Enumerate the backups present in a registry, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		kind := kindFlag(cmd)
		asJson := lo.Must(cmd.Flags().GetBool("json"))

		backups, err := backup.List(kind)
		handleErr(err)

		if asJson {
			type entry struct {
				ID        string `json:"id"`
				CreatedAt string `json:"created_at"`
				Path      string `json:"path"`
				Size      int64  `json:"size"`
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			lo.Must0(encoder.Encode(lo.Map(backups, func(b *backup.Backup, _ int) entry {
				return entry{
					ID:        b.ID,
					CreatedAt: b.CreatedAt.Format("2006-01-02 15:04:05"),
					Path:      b.Path,
					Size:      b.Size,
				}
			})))
			return
		}

		if len(backups) == 0 {
			fmt.Printf("%s registry %s is empty\n", icon.Get(icon.Warning), style.Fg(color.Purple)(string(kind)))
			return
		}

		for _, b := range backups {
			fmt.Printf(
				"%s %s %s\n",
				style.Fg(color.Purple)(b.ID),
				style.Faint(b.CreatedAt.Format("2006-01-02 15:04:05")),
				style.Fg(color.Yellow)(util.HumanSize(b.Size)),
			)
		}
	},
}

func init() {
	backupCmd.AddCommand(backupRestoreCmd)
	backupRestoreCmd.Flags().StringP("kind", "k", string(backup.KindManual), "The backup registry to search")
	_ = backupRestoreCmd.RegisterFlagCompletionFunc("kind", completionBackupKinds)
}

// backupRestoreCmd recovers a single file from the most recent backup capturing it.
var backupRestoreCmd = &cobra.Command{
	Use:   "restore [file]",
	Short: "Recover a single file from the most recent backup capturing it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kind := kindFlag(cmd)

		handleErr(backup.RestoreFile(args[0], kind))
		fmt.Printf(
			"%s restored %s\n",
			style.Fg(color.Green)(icon.Get(icon.Success)),
			style.Fg(color.Purple)(args[0]),
		)
	},
}

func init() {
	backupCmd.AddCommand(backupValidateCmd)
	backupValidateCmd.Flags().StringP("kind", "k", string(backup.KindManual), "The backup registry to resolve against")
	_ = backupValidateCmd.RegisterFlagCompletionFunc("kind", completionBackupKinds)
}

// backupValidateCmd checks the structural integrity of an archived backup.
var backupValidateCmd = &cobra.Command{
	Use:   "validate [id]",
	Short: "Check the structural integrity of an archived backup",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kind := kindFlag(cmd)

		b, err := backup.Resolve(args[0], kind)
		handleErr(err)

		warnings, err := backup.Validate(b)
		handleErr(err)

		for _, warning := range warnings {
			fmt.Printf("%s %s\n", icon.Get(icon.Warning), warning)
		}

		fmt.Printf(
			"%s backup %s is intact\n",
			style.Fg(color.Green)(icon.Get(icon.Success)),
			style.Fg(color.Purple)(b.ID),
		)
	},
}

func init() {
	backupCmd.AddCommand(backupPruneCmd)
	backupPruneCmd.Flags().StringP("kind", "k", string(backup.KindManual), "The backup registry to prune")
	backupPruneCmd.Flags().IntP("cap", "c", 0, "Override the configured retention cap")
	_ = backupPruneCmd.RegisterFlagCompletionFunc("kind", completionBackupKinds)
}

// backupPruneCmd deletes the oldest backups beyond the registry's retention cap.
var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete the oldest backups beyond the registry's retention cap",
	Run: func(cmd *cobra.Command, args []string) {
		kind := kindFlag(cmd)

		cap := lo.Must(cmd.Flags().GetInt("cap"))
		if !cmd.Flags().Changed("cap") {
			cap = kind.Cap()
		}

		removed, err := backup.Prune(kind, cap)
		handleErr(err)

		if len(removed) == 0 {
			fmt.Printf("%s registry %s is already within its cap\n", icon.Get(icon.Success), style.Fg(color.Purple)(string(kind)))
			return
		}

		fmt.Printf(
			"%s pruned %s from %s\n",
			style.Fg(color.Green)(icon.Get(icon.Success)),
			util.Quantify(len(removed), "backup", "backups"),
			style.Fg(color.Purple)(string(kind)),
		)
	},
}
