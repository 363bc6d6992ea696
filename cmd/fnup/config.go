// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"fnup-cli/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect fnup configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewProvider().Load(cmd.Context(), config.LoadOptions{
		ConfigFilePath: cfgFile,
		// config show displays whatever is resolved, valid or not, so a
		// missing function name must not fail the command.
		Overrides: map[string]any{},
	})
	if err != nil {
		// The operator is likely here to find the bad value, so the
		// resolved configuration is still printed underneath the warning.
		fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		if cfg == nil {
			// Loading itself failed (unreadable or malformed file); there
			// is nothing resolved to show beyond the defaults.
			cfg = config.DefaultConfig()
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, TitleStyle.Render("Resolved configuration"))
	fmt.Fprintln(w)
	row(w, "Name", cfg.Function.Name)
	row(w, "Runtime", string(cfg.Function.Runtime))
	row(w, "Handler", cfg.Function.Handler)
	row(w, "Memory", fmt.Sprintf("%d MB", cfg.Function.MemoryMB))
	row(w, "Timeout", fmt.Sprintf("%d s", cfg.Function.TimeoutSec))
	row(w, "Region", cfg.Region)
	row(w, "Role", cfg.RoleName)
	row(w, "HTTP", fmt.Sprintf("%t", cfg.ExposeHTTP))
	row(w, "Workdir", cfg.WorkDir)
	row(w, "Output", string(cfg.Output))
	return nil
}
