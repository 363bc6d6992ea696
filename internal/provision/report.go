// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"

	"fnup-cli/internal/cloud"
)

// Report is the externally observable result of a run. It is built purely
// from control-plane queries, never from in-memory state accumulated
// during the run, so a caller can rebuild it after a crash by re-querying.
type Report struct {
	// FunctionName is the deployed function's name.
	FunctionName string
	// Locator is the function's control-plane reference.
	Locator string
	// Region is the control-plane region.
	Region string
	// Runtime is the observed runtime identifier.
	Runtime string
	// Handler is the observed entry-point reference.
	Handler string
	// MemoryMB is the observed memory limit.
	MemoryMB int32
	// TimeoutSec is the observed invocation timeout.
	TimeoutSec int32
	// CodeSHA identifies the deployed code revision.
	CodeSHA string
	// URL is the front-door invocation URL; empty when no front door exists.
	URL string
	// Degraded marks a run whose front-door stage failed after the
	// function deployed successfully.
	Degraded bool
	// DegradedReason carries the front-door failure, when degraded.
	DegradedReason string
}

// BuildReport rebuilds the deployment summary from control-plane queries.
// When includeFrontDoor is set, the front door is looked up by derived
// name; its absence leaves the URL empty rather than failing.
func BuildReport(ctx context.Context, plane cloud.ControlPlane, functionName string, includeFrontDoor bool) (*Report, error) {
	fn, err := plane.GetFunction(ctx, functionName)
	if err != nil {
		return nil, err
	}

	report := &Report{
		FunctionName: fn.Name,
		Locator:      fn.Locator,
		Region:       plane.Region(),
		Runtime:      fn.Runtime,
		Handler:      fn.Handler,
		MemoryMB:     fn.MemoryMB,
		TimeoutSec:   fn.TimeoutSec,
		CodeSHA:      fn.CodeSHA,
	}

	if includeFrontDoor {
		door, err := plane.GetFrontDoor(ctx, FrontDoorName(functionName))
		switch {
		case err == nil:
			report.URL = cloud.InvokeURL(door.ID, plane.Region(), StageLabel)
		case errors.Is(err, cloud.ErrNotFound):
			// No front door yet; the summary simply carries no URL.
		default:
			return nil, err
		}
	}

	return report, nil
}
