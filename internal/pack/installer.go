// SPDX-License-Identifier: MPL-2.0

package pack

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"fnup-cli/internal/config"
)

// Installer materializes the dependency closure of a staged bundle.
// Implementations run the ecosystem's own resolver inside the staging
// directory so the archive carries everything the function needs.
type Installer interface {
	Install(ctx context.Context, stagingDir string, family config.RuntimeFamily) error
}

type execInstaller struct{}

// NewExecInstaller returns the production Installer, which shells out to
// the family's package manager (npm for Node.js, pip for Python).
func NewExecInstaller() Installer {
	return &execInstaller{}
}

// Install runs the resolver for the staged manifest. The command's output
// is captured and attached to the error on failure.
func (i *execInstaller) Install(ctx context.Context, stagingDir string, family config.RuntimeFamily) error {
	var cmd *exec.Cmd
	switch family {
	case config.FamilyNode:
		cmd = exec.CommandContext(ctx, "npm", "install", "--omit=dev", "--no-audit", "--no-fund")
	case config.FamilyPython:
		cmd = exec.CommandContext(ctx, "pip", "install", "-r", "requirements.txt", "-t", ".")
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFamily, family)
	}
	cmd.Dir = stagingDir

	slog.Debug("resolving dependencies", "family", family, "command", cmd.String())

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", cmd.Args[0], err, string(out))
	}
	return nil
}
