// SPDX-License-Identifier: MPL-2.0

// Package provision drives the external control plane to the declared
// desired state: a packaged function, its execution identity, and an
// optional HTTP front door.
//
// Execution is strictly sequential and every external call is attempted
// exactly once per run. The control plane is the source of truth: each
// stage re-queries before deciding create-vs-update, so re-running a
// deployment converges instead of duplicating resources. Failures in the
// identity and function stages are fatal; a front-door failure degrades
// the result but leaves the deployed function in place.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fnup-cli/internal/cloud"
	"fnup-cli/internal/config"
	"fnup-cli/internal/pack"

	"github.com/charmbracelet/log"
)

const (
	// StageValidate covers input validation before any external call.
	StageValidate Stage = "validate"
	// StagePackage covers building the code bundle.
	StagePackage Stage = "package"
	// StagePreflight covers the credential probe.
	StagePreflight Stage = "preflight"
	// StageIdentity covers execution-identity reconciliation.
	StageIdentity Stage = "identity"
	// StageFunction covers function reconciliation.
	StageFunction Stage = "function"
	// StageFrontDoor covers HTTP front-door reconciliation.
	StageFrontDoor Stage = "front-door"
	// StageReport covers rebuilding the summary from control-plane queries.
	StageReport Stage = "report"

	// KindValidation marks malformed or missing input. Zero side effects.
	KindValidation Kind = "validation"
	// KindPrecondition marks absent external prerequisites (credentials,
	// package tooling) detected before mutating calls.
	KindPrecondition Kind = "precondition"
	// KindExternal marks a failed control-plane call.
	KindExternal Kind = "external"

	// identityGraceWait is how long a run pauses after creating a fresh
	// identity before referencing it, covering the control plane's
	// eventual-consistency window. Skipped when the identity pre-existed.
	identityGraceWait = 10 * time.Second
)

type (
	// Stage labels one phase of a deployment run.
	Stage string

	// Kind classifies a failure per the propagation policy.
	Kind string

	// StageError reports which stage failed and how the failure is
	// classified. It wraps the underlying error for errors.Is/As.
	StageError struct {
		Stage Stage
		Kind  Kind
		Err   error
	}

	// Request is the immutable desired state for one deployment run.
	Request struct {
		FunctionName string
		Runtime      config.Runtime
		Handler      string
		MemoryMB     int32
		TimeoutSec   int32
		Env          map[string]string
		RoleName     string
		ExposeHTTP   bool
		WorkDir      string
	}

	// Provisioner runs deployments against one control plane.
	Provisioner struct {
		plane    cloud.ControlPlane
		packager *pack.Builder
		logger   *log.Logger

		// graceWait and sleep are injectable so tests need not wait out the
		// identity propagation window.
		graceWait time.Duration
		sleep     func(time.Duration)
	}

	// Option configures a Provisioner.
	Option func(*Provisioner)
)

// Error implements the error interface for StageError.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// WithGraceWait overrides the identity propagation wait.
func WithGraceWait(d time.Duration) Option {
	return func(p *Provisioner) { p.graceWait = d }
}

// WithSleep overrides the sleep function used for the propagation wait.
func WithSleep(f func(time.Duration)) Option {
	return func(p *Provisioner) { p.sleep = f }
}

// NewProvisioner creates a Provisioner. A nil logger discards output.
func NewProvisioner(plane cloud.ControlPlane, packager *pack.Builder, logger *log.Logger, opts ...Option) *Provisioner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	p := &Provisioner{
		plane:     plane,
		packager:  packager,
		logger:    logger,
		graceWait: identityGraceWait,
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequestFromConfig builds a deployment request from a validated Config.
func RequestFromConfig(cfg *config.Config) Request {
	return Request{
		FunctionName: cfg.Function.Name,
		Runtime:      cfg.Function.Runtime,
		Handler:      cfg.Function.Handler,
		MemoryMB:     cfg.Function.MemoryMB,
		TimeoutSec:   cfg.Function.TimeoutSec,
		Env:          cfg.Function.Env,
		RoleName:     cfg.RoleName,
		ExposeHTTP:   cfg.ExposeHTTP,
		WorkDir:      cfg.WorkDir,
	}
}

// Validate checks the request before any external call is made. The full
// input validation lives in config; this guards direct library callers.
func (r Request) Validate() error {
	if r.FunctionName == "" {
		return config.ErrInvalidFunctionName
	}
	if !r.Runtime.IsValid() {
		return &config.InvalidRuntimeError{Value: r.Runtime}
	}
	if strings.TrimSpace(r.Handler) == "" {
		return config.ErrInvalidHandler
	}
	if r.MemoryMB <= 0 {
		return config.ErrInvalidMemory
	}
	if r.TimeoutSec <= 0 {
		return config.ErrInvalidTimeout
	}
	if r.RoleName == "" {
		return config.ErrInvalidRoleName
	}
	return nil
}

// Deploy drives one deployment run to completion and returns the summary
// rebuilt from control-plane queries.
//
// Stage order: validate, package, preflight, identity, function, front
// door (when requested), report. The first fatal error aborts the run
// after scheduled cleanup; a front-door failure is reported in the
// summary instead of failing the run.
func (p *Provisioner) Deploy(ctx context.Context, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, &StageError{Stage: StageValidate, Kind: KindValidation, Err: err}
	}

	p.logger.Info("packaging function", "name", req.FunctionName, "workdir", req.WorkDir)
	archive, err := p.packager.Build(ctx, pack.Spec{
		FunctionName: req.FunctionName,
		Family:       req.Runtime.Family(),
		WorkDir:      req.WorkDir,
	})
	if err != nil {
		if errors.Is(err, pack.ErrNoEntryPoint) || errors.Is(err, pack.ErrUnsupportedFamily) {
			return nil, &StageError{Stage: StagePackage, Kind: KindValidation, Err: err}
		}
		return nil, &StageError{Stage: StagePackage, Kind: KindPrecondition, Err: err}
	}
	defer archive.Close()

	code, err := archive.Bytes()
	if err != nil {
		return nil, &StageError{Stage: StagePackage, Kind: KindPrecondition, Err: err}
	}

	p.logger.Info("verifying credentials")
	caller, err := p.plane.VerifyCaller(ctx)
	if err != nil {
		return nil, &StageError{Stage: StagePreflight, Kind: KindPrecondition, Err: err}
	}

	p.logger.Info("reconciling execution identity", "role", req.RoleName)
	identity, err := p.ensureIdentity(ctx, req.RoleName)
	if err != nil {
		return nil, &StageError{Stage: StageIdentity, Kind: KindExternal, Err: err}
	}

	p.logger.Info("reconciling function", "name", req.FunctionName)
	if _, err := p.ensureFunction(ctx, req, identity, code); err != nil {
		return nil, &StageError{Stage: StageFunction, Kind: KindExternal, Err: err}
	}

	var frontDoorErr error
	if req.ExposeHTTP {
		p.logger.Info("reconciling http front door", "name", FrontDoorName(req.FunctionName))
		if err := p.ensureFrontDoor(ctx, req.FunctionName, caller); err != nil {
			// The function is the primary deliverable; a front-door failure
			// degrades the result instead of failing the run.
			frontDoorErr = err
			p.logger.Warn("front door reconciliation failed; function remains deployed",
				"error", err)
		}
	}

	report, err := BuildReport(ctx, p.plane, req.FunctionName, req.ExposeHTTP)
	if err != nil {
		return nil, &StageError{Stage: StageReport, Kind: KindExternal, Err: err}
	}
	if frontDoorErr != nil {
		report.Degraded = true
		report.DegradedReason = frontDoorErr.Error()
	}

	p.logger.Info("deployment complete", "function", report.Locator)
	return report, nil
}
