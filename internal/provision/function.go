// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"

	"fnup-cli/internal/cloud"
)

// ensureFunction reconciles the function to the requested state.
//
// The create path is the only one that supplies the execution identity;
// updates never change it. On the update path the code push must precede
// the configuration push: the control plane can reject configuration
// changes on a function mid code-update. Both paths converge to the same
// observable state for the same request.
func (p *Provisioner) ensureFunction(ctx context.Context, req Request, identity *cloud.Identity, code []byte) (*cloud.Function, error) {
	spec := cloud.FunctionSpec{
		Name:       req.FunctionName,
		Runtime:    string(req.Runtime),
		Handler:    req.Handler,
		MemoryMB:   req.MemoryMB,
		TimeoutSec: req.TimeoutSec,
		Env:        req.Env,
	}

	existing, err := p.plane.GetFunction(ctx, req.FunctionName)
	if err != nil {
		if !errors.Is(err, cloud.ErrNotFound) {
			return nil, err
		}

		spec.RoleLocator = identity.Locator
		p.logger.Debug("function absent, creating", "name", req.FunctionName)
		return p.plane.CreateFunction(ctx, spec, code)
	}

	p.logger.Debug("function exists, updating in place", "name", req.FunctionName, "locator", existing.Locator)

	if err := p.plane.UpdateFunctionCode(ctx, req.FunctionName, code); err != nil {
		return nil, err
	}
	if err := p.plane.UpdateFunctionConfiguration(ctx, spec); err != nil {
		return nil, err
	}

	return existing, nil
}
