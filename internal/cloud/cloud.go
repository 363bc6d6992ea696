// SPDX-License-Identifier: MPL-2.0

// Package cloud defines the control-plane boundary the provisioner drives.
//
// The control plane is the source of truth for all durable resource state:
// callers must re-query before deciding create-vs-update and never assume
// local state is authoritative. Every Get here is side-effect free; absent
// resources are reported with ErrNotFound so callers can branch on
// errors.Is rather than on provider-specific error types.
package cloud

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups when the resource does not exist in
// the control plane. It is the only error lookups are allowed to use for
// absence.
var ErrNotFound = errors.New("resource not found")

// BaselineExecutionPolicy is the managed policy attached to a freshly
// created execution identity. It grants log delivery and nothing else.
const BaselineExecutionPolicy = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"

type (
	// CallerIdentity describes the credentials the run executes under.
	// Obtained from the pre-flight probe; the account number is needed to
	// compose invoke-permission source locators.
	CallerIdentity struct {
		Account string
		ARN     string
	}

	// Identity is an execution role as known to the control plane.
	Identity struct {
		// Name is the role name, the key the provisioner reconciles on.
		Name string
		// Locator is the opaque reference (ARN) handed to the function stage.
		Locator string
	}

	// FunctionSpec is the desired state pushed at create and update.
	FunctionSpec struct {
		Name       string
		Runtime    string
		Handler    string
		MemoryMB   int32
		TimeoutSec int32
		// RoleLocator is only consumed at create; updates never change the
		// execution identity.
		RoleLocator string
		Env         map[string]string
	}

	// Function is the observed state of a deployed function.
	Function struct {
		Name       string
		Locator    string
		Runtime    string
		Handler    string
		MemoryMB   int32
		TimeoutSec int32
		CodeSHA    string
	}

	// FrontDoor is an HTTP routing resource bound to one function.
	FrontDoor struct {
		// ID is the control-plane identifier the public URL derives from.
		ID string
		// Name is the derived lookup name (function name + suffix).
		Name string
	}
)

type (
	// IdentityAPI reconciles execution identities.
	IdentityAPI interface {
		// GetIdentity looks up a role by name. Returns ErrNotFound when absent.
		GetIdentity(ctx context.Context, name string) (*Identity, error)
		// CreateIdentity creates a role with the given trust policy document.
		CreateIdentity(ctx context.Context, name, trustPolicy string) (*Identity, error)
		// AttachExecutionPolicy attaches the baseline execution policy to a role.
		AttachExecutionPolicy(ctx context.Context, name string) error
	}

	// FunctionAPI reconciles functions and their invoke permissions.
	FunctionAPI interface {
		// GetFunction looks up a function by name. Returns ErrNotFound when absent.
		GetFunction(ctx context.Context, name string) (*Function, error)
		// CreateFunction creates the function with its code bundle and full
		// configuration, including the execution identity.
		CreateFunction(ctx context.Context, spec FunctionSpec, code []byte) (*Function, error)
		// UpdateFunctionCode replaces the code bundle of an existing function.
		UpdateFunctionCode(ctx context.Context, name string, code []byte) error
		// UpdateFunctionConfiguration pushes runtime, handler and resource
		// limits to an existing function. Must be called after
		// UpdateFunctionCode: the control plane may reject configuration
		// changes on a function mid code-update.
		UpdateFunctionConfiguration(ctx context.Context, spec FunctionSpec) error
		// AddInvokePermission grants the principal permission to invoke the
		// function, keyed by statement id. Re-granting an existing statement
		// succeeds without duplicating it.
		AddInvokePermission(ctx context.Context, functionName, statementID, principal, sourceLocator string) error
	}

	// FrontDoorAPI reconciles the HTTP routing resource.
	FrontDoorAPI interface {
		// GetFrontDoor looks up a front door by derived name. Returns
		// ErrNotFound when absent.
		GetFrontDoor(ctx context.Context, name string) (*FrontDoor, error)
		// CreateFrontDoor creates an empty front door.
		CreateFrontDoor(ctx context.Context, name string) (*FrontDoor, error)
		// WireProxyRoute creates the catch-all resource under the front
		// door's root, attaches an any-method rule with no authorization and
		// binds it to the function via a proxying integration.
		WireProxyRoute(ctx context.Context, frontDoorID, functionLocator string) error
		// PublishStage publishes the routing tree to the given stage label.
		PublishStage(ctx context.Context, frontDoorID, stage string) error
	}

	// ControlPlane is the full boundary one deployment run drives.
	ControlPlane interface {
		// VerifyCaller probes the configured credentials before any mutating
		// call is made.
		VerifyCaller(ctx context.Context) (*CallerIdentity, error)
		// Region reports the region this control plane operates in.
		Region() string

		IdentityAPI
		FunctionAPI
		FrontDoorAPI
	}
)

// ExecutionTrustPolicy is the trust-policy document scoped to the
// serverless compute service, allowing it to assume the execution role.
const ExecutionTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "lambda.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// InvokeURL composes the stable public URL for a published front door.
func InvokeURL(frontDoorID, region, stage string) string {
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s", frontDoorID, region, stage)
}

// InvokePermissionSource composes the source locator that scopes an
// invoke-permission grant to one front door.
func InvokePermissionSource(region, account, frontDoorID string) string {
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/*/*", region, account, frontDoorID)
}
