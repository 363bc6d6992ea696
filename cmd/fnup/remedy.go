// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"

	"fnup-cli/internal/issue"
	"fnup-cli/internal/provision"
)

// remediate wraps a deployment failure into an ActionableError carrying
// stage-specific remediation suggestions. Errors that already carry
// actionable context pass through unchanged.
func remediate(err error) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return err
	}

	var stageErr *provision.StageError
	if !errors.As(err, &stageErr) {
		return issue.NewErrorContext().
			WithOperation("deploy function").
			Wrap(err).
			BuildError()
	}

	ctx := issue.NewErrorContext().Wrap(stageErr.Err)

	switch stageErr.Stage {
	case provision.StageValidate:
		ctx.WithOperation("validate deployment request").
			WithSuggestion("Check the function name, runtime, memory and timeout settings").
			WithSuggestion("Run 'fnup config show' to see the resolved configuration")
	case provision.StagePackage:
		ctx.WithOperation("package function")
		if stageErr.Kind == provision.KindValidation {
			ctx.WithSuggestion("Make sure the working directory contains a recognized entry-point file").
				WithSuggestion("Use --workdir to point at the directory with your function sources")
		} else {
			ctx.WithSuggestion("Check that the package manager for your runtime is installed and on PATH")
		}
	case provision.StagePreflight:
		ctx.WithOperation("verify credentials").
			WithSuggestion("Run 'aws configure' to set up credentials").
			WithSuggestion("Check that AWS_PROFILE points at a valid profile")
	case provision.StageIdentity:
		ctx.WithOperation("reconcile execution role").
			WithSuggestion("Check that your credentials allow iam:GetRole, iam:CreateRole and iam:AttachRolePolicy")
	case provision.StageFunction:
		ctx.WithOperation("reconcile function").
			WithSuggestion("Check that your credentials allow lambda:CreateFunction and lambda:UpdateFunctionCode").
			WithSuggestion("Re-run the deploy once the underlying issue is fixed; the run converges safely")
	case provision.StageReport:
		ctx.WithOperation("query deployed state").
			WithSuggestion("Run 'fnup status' to retry the query")
	default:
		ctx.WithOperation("deploy function")
	}

	return ctx.BuildError()
}
