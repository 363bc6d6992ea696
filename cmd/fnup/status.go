// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"fnup-cli/internal/cloud"
	"fnup-cli/internal/config"
	"fnup-cli/internal/provision"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the deployed state of a function",
	Long: `Rebuild the deployment summary purely from control-plane queries.

This is the recovery path after an interrupted deploy: it reports
whatever actually exists, including a front-door URL when one is
published.`,
	RunE: runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.String("name", "", "function name (required unless set in config)")
	f.String("region", "", "control-plane region")
	f.StringP("output", "o", "", "summary format: table or plain")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	opts := config.LoadOptions{
		ConfigFilePath: cfgFile,
		Overrides:      map[string]any{},
	}
	f := cmd.Flags()
	if f.Changed("name") {
		opts.Overrides["function.name"], _ = f.GetString("name")
	}
	if f.Changed("region") {
		opts.Overrides["region"], _ = f.GetString("region")
	}
	if f.Changed("output") {
		opts.Overrides["output"], _ = f.GetString("output")
	}

	cfg, err := config.NewProvider().Load(ctx, opts)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	plane, err := cloud.NewAWSPlane(ctx, cfg.Region)
	if err != nil {
		wrapped := remediate(err)
		fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(wrapped, cfg.Verbose || verbose))
		return &ExitError{Code: 1, Err: err}
	}

	report, err := provision.BuildReport(ctx, plane, cfg.Function.Name, true)
	if err != nil {
		wrapped := remediate(err)
		fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(wrapped, cfg.Verbose || verbose))
		return &ExitError{Code: 1, Err: err}
	}

	renderReport(cmd.OutOrStdout(), report, cfg.Output)
	return nil
}
