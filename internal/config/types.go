// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	// FamilyNode groups the Node.js runtimes.
	FamilyNode RuntimeFamily = "node"
	// FamilyPython groups the Python runtimes.
	FamilyPython RuntimeFamily = "python"

	// OutputTable renders the deployment summary as a styled table.
	OutputTable OutputMode = "table"
	// OutputPlain renders the deployment summary as key=value lines for automation.
	OutputPlain OutputMode = "plain"

	// DefaultRoleName is the execution role used when none is configured.
	// The role is shared across functions deployed by this tool and is
	// created once, then reused by lookup.
	DefaultRoleName = "fnup-lambda-execute"
)

var (
	// ErrInvalidFunctionName is returned when the function name is empty or malformed.
	ErrInvalidFunctionName = errors.New("invalid function name")
	// ErrInvalidRuntime is the sentinel error wrapped by InvalidRuntimeError.
	ErrInvalidRuntime = errors.New("invalid runtime")
	// ErrInvalidMemory is returned when the memory limit is not positive.
	ErrInvalidMemory = errors.New("invalid memory limit")
	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidHandler is returned when the handler reference is whitespace-only.
	ErrInvalidHandler = errors.New("invalid handler reference")
	// ErrInvalidOutputMode is returned when an OutputMode value is not recognized.
	ErrInvalidOutputMode = errors.New("invalid output mode")
	// ErrInvalidRoleName is returned when the role name is whitespace-only.
	ErrInvalidRoleName = errors.New("invalid role name")
)

// functionNameRegex validates function names: must start with a letter,
// then letters, digits, hyphens or underscores (the control plane's own
// naming constraint, checked locally before any call is made).
var functionNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

type (
	// Runtime identifies a control-plane runtime (e.g. "nodejs20.x").
	Runtime string

	// RuntimeFamily groups runtimes that share packaging conventions:
	// entry-point filenames, manifest files and dependency installer.
	RuntimeFamily string

	// OutputMode selects how the final summary is rendered.
	OutputMode string

	// InvalidRuntimeError is returned when a Runtime value is not in the
	// supported set. It wraps ErrInvalidRuntime for errors.Is() compatibility.
	InvalidRuntimeError struct {
		Value Runtime
	}

	// FunctionSettings is the desired state of the function being deployed.
	FunctionSettings struct {
		// Name is the function name, the primary key in the control plane.
		Name string
		// Runtime is the control-plane runtime identifier.
		Runtime Runtime
		// Handler is the entry-point reference (e.g. "index.handler").
		Handler string
		// MemoryMB is the memory limit in megabytes.
		MemoryMB int32
		// TimeoutSec is the invocation timeout in seconds.
		TimeoutSec int32
		// Env holds environment variables applied at create and update.
		Env map[string]string
	}

	// Config is the complete resolved configuration for one run. It is
	// constructed once at entry and passed into every stage; stages never
	// read the environment themselves.
	Config struct {
		// Function is the desired function state.
		Function FunctionSettings
		// Region is the control-plane region.
		Region string
		// RoleName is the execution role the function runs as.
		RoleName string
		// ExposeHTTP requests an HTTP front door bound to the function.
		ExposeHTTP bool
		// WorkDir is the directory containing the function sources.
		WorkDir string
		// Output selects the summary rendering mode.
		Output OutputMode
		// Verbose enables verbose diagnostic output.
		Verbose bool
	}
)

// supportedRuntimes maps every accepted runtime identifier to its family.
// This is the single place runtime support is declared; packaging derives
// entry-point probes and installers from the family.
var supportedRuntimes = map[Runtime]RuntimeFamily{
	"nodejs22.x": FamilyNode,
	"nodejs20.x": FamilyNode,
	"nodejs18.x": FamilyNode,
	"python3.13": FamilyPython,
	"python3.12": FamilyPython,
	"python3.11": FamilyPython,
}

// Error implements the error interface for InvalidRuntimeError.
func (e *InvalidRuntimeError) Error() string {
	return fmt.Sprintf("%v: %q (supported: %s)", ErrInvalidRuntime, e.Value, strings.Join(SupportedRuntimes(), ", "))
}

// Unwrap returns the sentinel for errors.Is() checks.
func (e *InvalidRuntimeError) Unwrap() error { return ErrInvalidRuntime }

// IsValid reports whether the runtime is in the supported set.
func (r Runtime) IsValid() bool {
	_, ok := supportedRuntimes[r]
	return ok
}

// Family returns the packaging family for a supported runtime.
// Returns the empty family for unsupported runtimes.
func (r Runtime) Family() RuntimeFamily {
	return supportedRuntimes[r]
}

// SupportedRuntimes returns the sorted list of accepted runtime identifiers.
func SupportedRuntimes() []string {
	out := make([]string, 0, len(supportedRuntimes))
	for r := range supportedRuntimes {
		out = append(out, string(r))
	}
	slices.Sort(out)
	return out
}

// IsValid reports whether the output mode is recognized.
func (m OutputMode) IsValid() bool {
	switch m {
	case OutputTable, OutputPlain:
		return true
	}
	return false
}

// DefaultHandler returns the canonical handler reference for a runtime family.
func (f RuntimeFamily) DefaultHandler() string {
	switch f {
	case FamilyPython:
		return "lambda_function.handler"
	default:
		return "index.handler"
	}
}

// Validate checks the configuration before any external call is made.
// All failures wrap one of the package sentinel errors.
func (c *Config) Validate() error {
	if !functionNameRegex.MatchString(c.Function.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidFunctionName, c.Function.Name)
	}
	if !c.Function.Runtime.IsValid() {
		return &InvalidRuntimeError{Value: c.Function.Runtime}
	}
	if strings.TrimSpace(c.Function.Handler) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidHandler, c.Function.Handler)
	}
	if c.Function.MemoryMB <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMemory, c.Function.MemoryMB)
	}
	if c.Function.TimeoutSec <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimeout, c.Function.TimeoutSec)
	}
	if strings.TrimSpace(c.RoleName) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRoleName, c.RoleName)
	}
	if !c.Output.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutputMode, c.Output)
	}
	return nil
}
