// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"fnup-cli/internal/cloud"
	"fnup-cli/internal/config"
	"fnup-cli/internal/pack"
	"fnup-cli/internal/provision"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Package and deploy a function",
	Long: `Package the function sources in the working directory and drive the
control plane to the requested state: execution role, function, and
optionally an HTTP front door.

The run is idempotent: existing resources are found by name and
updated in place, never duplicated. A front-door failure degrades the
result but leaves the deployed function intact.`,
	RunE: runDeploy,
}

func init() {
	f := deployCmd.Flags()
	f.String("name", "", "function name (required unless set in config)")
	f.String("runtime", "", "runtime identifier (e.g. nodejs20.x, python3.12)")
	f.String("handler", "", "entry-point reference (e.g. index.handler)")
	f.Int32("memory", 0, "memory limit in MB")
	f.Int32("timeout", 0, "invocation timeout in seconds")
	f.StringToString("env", nil, "environment variables for the function (key=value)")
	f.String("region", "", "control-plane region")
	f.String("role", "", "execution role name")
	f.Bool("http", false, "expose the function via an HTTP front door")
	f.String("workdir", "", "directory containing the function sources")
	f.StringP("output", "o", "", "summary format: table or plain")
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	logger := newRunLogger(cfg.Verbose)

	plane, err := cloud.NewAWSPlane(ctx, cfg.Region)
	if err != nil {
		wrapped := remediate(err)
		fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(wrapped, cfg.Verbose))
		return &ExitError{Code: 1, Err: err}
	}

	provisioner := provision.NewProvisioner(plane, pack.NewBuilder(pack.NewExecInstaller()), logger)

	report, err := provisioner.Deploy(ctx, provision.RequestFromConfig(cfg))
	if err != nil {
		wrapped := remediate(err)
		fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(wrapped, cfg.Verbose))
		return &ExitError{Code: 1, Err: err}
	}

	renderReport(cmd.OutOrStdout(), report, cfg.Output)
	return nil
}

// loadRunConfig resolves the full configuration for a run: defaults, the
// optional config file, FNUP_* environment variables, then flag overrides.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := config.LoadOptions{
		ConfigFilePath: cfgFile,
		Overrides:      map[string]any{},
	}

	f := cmd.Flags()
	if f.Changed("workdir") {
		opts.WorkDir, _ = f.GetString("workdir")
	}
	if f.Changed("name") {
		opts.Overrides["function.name"], _ = f.GetString("name")
	}
	if f.Changed("runtime") {
		opts.Overrides["function.runtime"], _ = f.GetString("runtime")
	}
	if f.Changed("handler") {
		opts.Overrides["function.handler"], _ = f.GetString("handler")
	}
	if f.Changed("memory") {
		opts.Overrides["function.memory_mb"], _ = f.GetInt32("memory")
	}
	if f.Changed("timeout") {
		opts.Overrides["function.timeout_sec"], _ = f.GetInt32("timeout")
	}
	if f.Changed("env") {
		opts.Overrides["function.env"], _ = f.GetStringToString("env")
	}
	if f.Changed("region") {
		opts.Overrides["region"], _ = f.GetString("region")
	}
	if f.Changed("role") {
		opts.Overrides["role_name"], _ = f.GetString("role")
	}
	if f.Changed("http") {
		opts.Overrides["expose_http"], _ = f.GetBool("http")
	}
	if f.Changed("output") {
		opts.Overrides["output"], _ = f.GetString("output")
	}
	if verbose {
		opts.Overrides["verbose"] = true
	}

	return config.NewProvider().Load(cmd.Context(), opts)
}

// newRunLogger builds the stage-progress logger for a run.
func newRunLogger(verboseMode bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "fnup",
	})
	if verboseMode {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
