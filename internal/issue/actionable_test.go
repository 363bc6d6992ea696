// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "package function"},
			want: "failed to package function",
		},
		{
			name: "operation and resource",
			err:  &ActionableError{Operation: "package function", Resource: "/src/app"},
			want: "failed to package function: /src/app",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "create execution role",
				Resource:  "fnup-lambda-execute",
				Cause:     errors.New("access denied"),
			},
			want: "failed to create execution role: fnup-lambda-execute: access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("throttled")
	err := NewErrorContext().
		WithOperation("update function code").
		Wrap(cause).
		BuildError()

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestActionableError_Format_Suggestions(t *testing.T) {
	t.Parallel()

	ae := NewErrorContext().
		WithOperation("verify credentials").
		WithSuggestion("Run 'aws configure' to set up credentials").
		WithSuggestion("Check AWS_PROFILE points at a valid profile").
		Build()

	out := ae.Format(false)
	if !strings.Contains(out, "failed to verify credentials") {
		t.Errorf("missing headline in %q", out)
	}
	if !strings.Contains(out, "• Run 'aws configure'") {
		t.Errorf("missing first suggestion in %q", out)
	}
	if !strings.Contains(out, "• Check AWS_PROFILE") {
		t.Errorf("missing second suggestion in %q", out)
	}
}

func TestActionableError_Format_VerboseChain(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection reset")
	mid := WrapWithOperation(inner, "call control plane")
	ae := NewErrorContext().
		WithOperation("create function").
		Wrap(mid).
		Build()

	out := ae.Format(true)
	if !strings.Contains(out, "Error chain:") {
		t.Errorf("verbose output missing error chain: %q", out)
	}
	if !strings.Contains(out, "connection reset") {
		t.Errorf("verbose output missing root cause: %q", out)
	}
}

func TestErrorContext_Build_RequiresOperation(t *testing.T) {
	t.Parallel()

	if got := NewErrorContext().WithResource("x").Build(); got != nil {
		t.Errorf("Build() without operation = %+v, want nil", got)
	}
	if got := NewErrorContext().BuildError(); got != nil {
		t.Errorf("BuildError() without operation = %v, want nil", got)
	}
}

func TestWrapWithOperation_NilError(t *testing.T) {
	t.Parallel()

	if got := WrapWithOperation(nil, "anything"); got != nil {
		t.Errorf("WrapWithOperation(nil) = %+v, want nil", got)
	}
}
