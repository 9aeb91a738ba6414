// Package cmd implements the command-line interface for dotkeep.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dotkeep-cli/dotkeep/atomic"
	"github.com/dotkeep-cli/dotkeep/color"
	"github.com/dotkeep-cli/dotkeep/constant"
	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/icon"
	"github.com/dotkeep-cli/dotkeep/key"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/dotkeep-cli/dotkeep/style"
	"github.com/dotkeep-cli/dotkeep/version"
	"github.com/dotkeep-cli/dotkeep/where"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")

	rootCmd.PersistentFlags().StringP("icons", "I", "", "Set the visual icon variant (e.g., nerd, emoji, plain)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("icons", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return icon.AvailableVariants(), cobra.ShellCompDirectiveDefault
	}))
	lo.Must0(viper.BindPFlag(key.IconsVariant, rootCmd.PersistentFlags().Lookup("icons")))

	helpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpFunc(cmd, args)
		version.Notify()
	})

	// Sweep stale atomic-write temporaries left behind by interrupted runs.
	go func() {
		if n, err := atomic.Cleanup(where.Temp(), time.Hour); err == nil && n > 0 {
			log.Debugf("swept %d stale temp files", n)
		}
	}()
}

// rootCmd defines the entry point for the dotkeep application.
var rootCmd = &cobra.Command{
	Use:   constant.Dotkeep,
	Short: "A command-line manager for versioned dotfiles with atomic updates and rollbacks",
	Long: constant.AsciiArtLogo + "\n" +
		style.New().Italic(true).Foreground(color.HiRed).Render("    - A command-line manager for versioned dotfiles with atomic updates and rollbacks"),
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("version") {
			versionCmd.Run(versionCmd, args)
			return
		}

		handleErr(cmd.Help())
	},
}

// Execute initializes child command routing and processes the CLI entry point.
func Execute() {
	if viper.GetBool(key.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(errs.ExitGeneric)
	}
}

// handleErr terminates the process with the exit code mapped from the error taxonomy.
// A cancelled prompt is an exit signal, not a failure, so it gets a calmer line.
func handleErr(err error) {
	if err == nil {
		return
	}

	log.Error(err)

	if errs.Is(err, errs.UserCancelled) {
		_, _ = fmt.Fprintf(os.Stderr, "%s cancelled\n", icon.Get(icon.Warning))
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", icon.Get(icon.Fail), strings.Trim(err.Error(), " \n"))
	}

	os.Exit(errs.ExitCode(err))
}
