// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for fnup.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"fnup-cli/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "fnup",
		Short: "Deploy serverless functions with one command",
		Long: TitleStyle.Render("fnup") + SubtitleStyle.Render(" - deploy serverless functions with one command") + `

fnup packages the function sources in a directory, reconciles the
execution role, the function itself and (optionally) an HTTP front
door against the cloud control plane, and prints where the result
lives. Re-running the same deployment converges: existing resources
are found and updated, never duplicated.

Configuration comes from flags, FNUP_* environment variables, or an
fnup.yaml file in the working directory.

` + SubtitleStyle.Render("Examples:") + `
  fnup deploy --name hello --runtime nodejs20.x      Deploy ./index.js as "hello"
  fnup deploy --name hello --http                    Same, plus a public URL
  fnup status --name hello                           Re-query the deployed state
  fnup config show                                   Show resolved configuration`,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fnup.yaml)")

	// Add subcommands
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
