// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"

	"fnup-cli/internal/cloud"
)

// ensureIdentity reconciles the execution identity by role name.
//
// An existing identity is reused as-is, with no mutation and no policy
// re-attach. A missing one is created with the service-scoped trust
// policy, given the baseline execution policy, and then the run waits out
// the control plane's eventual-consistency window before the identity is
// referenced anywhere.
func (p *Provisioner) ensureIdentity(ctx context.Context, roleName string) (*cloud.Identity, error) {
	identity, err := p.plane.GetIdentity(ctx, roleName)
	if err == nil {
		p.logger.Debug("execution identity exists, reusing", "role", roleName, "locator", identity.Locator)
		return identity, nil
	}
	if !errors.Is(err, cloud.ErrNotFound) {
		return nil, err
	}

	identity, err = p.plane.CreateIdentity(ctx, roleName, cloud.ExecutionTrustPolicy)
	if err != nil {
		return nil, err
	}

	if err := p.plane.AttachExecutionPolicy(ctx, roleName); err != nil {
		return nil, fmt.Errorf("identity %q created but policy attach failed: %w", roleName, err)
	}

	if p.graceWait > 0 {
		p.logger.Info("waiting for identity propagation", "role", roleName, "wait", p.graceWait)
		p.sleep(p.graceWait)
	}

	return identity, nil
}
