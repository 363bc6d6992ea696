// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"

	"fnup-cli/internal/cloud"
)

const (
	// frontDoorSuffix derives the front-door name from the function name.
	frontDoorSuffix = "-http"

	// StageLabel is the fixed stage the routing tree is published to.
	StageLabel = "default"

	// InvokeStatementID keys the invoke-permission grant. Fixed so that a
	// re-grant on redeploy targets the same statement instead of piling up
	// duplicates.
	InvokeStatementID = "fnup-frontdoor-invoke"

	// frontDoorPrincipal is the service principal the grant is issued to.
	frontDoorPrincipal = "apigateway.amazonaws.com"
)

// FrontDoorName derives the front-door lookup name from a function name.
func FrontDoorName(functionName string) string {
	return functionName + frontDoorSuffix
}

// ensureFrontDoor reconciles the HTTP front door for a function.
//
// A missing front door gets the full tree: API, catch-all proxy route
// bound to the function, and a published stage. An existing one is reused
// without touching its routing resources; redeploys refresh the function,
// not the routing tree, so a front door created for an older configuration
// keeps its old routes (a warning points this out). The invoke-permission
// grant is applied on both paths; it is idempotent by statement id.
func (p *Provisioner) ensureFrontDoor(ctx context.Context, functionName string, caller *cloud.CallerIdentity) error {
	name := FrontDoorName(functionName)

	fn, err := p.plane.GetFunction(ctx, functionName)
	if err != nil {
		return err
	}

	door, err := p.plane.GetFrontDoor(ctx, name)
	switch {
	case err == nil:
		p.logger.Warn("existing front door reused; routing rules are not refreshed",
			"name", name, "id", door.ID)
	case errors.Is(err, cloud.ErrNotFound):
		door, err = p.plane.CreateFrontDoor(ctx, name)
		if err != nil {
			return err
		}
		if err := p.plane.WireProxyRoute(ctx, door.ID, fn.Locator); err != nil {
			return err
		}
		if err := p.plane.PublishStage(ctx, door.ID, StageLabel); err != nil {
			return err
		}
	default:
		return err
	}

	// Without this grant the API provisions fine but rejects every request
	// at invoke time.
	source := cloud.InvokePermissionSource(p.plane.Region(), caller.Account, door.ID)
	return p.plane.AddInvokePermission(ctx, functionName, InvokeStatementID, frontDoorPrincipal, source)
}
