// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fnup-cli/internal/cloud"
	"fnup-cli/internal/config"
	"fnup-cli/internal/pack"
)

// stubPlane implements cloud.ControlPlane in memory, recording every call
// so tests can assert call counts and ordering without a real control plane.
type stubPlane struct {
	region string
	calls  []string

	identities map[string]*cloud.Identity
	functions  map[string]*cloud.Function
	doors      map[string]*cloud.FrontDoor
	grants     map[string]bool

	verifyErr          error
	createFunctionErr  error
	createFrontDoorErr error
	updateCodeErr      error
	nextDoorID         int
}

func newStubPlane() *stubPlane {
	return &stubPlane{
		region:     "us-east-1",
		identities: make(map[string]*cloud.Identity),
		functions:  make(map[string]*cloud.Function),
		doors:      make(map[string]*cloud.FrontDoor),
		grants:     make(map[string]bool),
	}
}

func (s *stubPlane) record(op string) { s.calls = append(s.calls, op) }

// count returns how many times op was called.
func (s *stubPlane) count(op string) int {
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

// indexOf returns the position of the first occurrence of op, or -1.
func (s *stubPlane) indexOf(op string) int {
	for i, c := range s.calls {
		if c == op {
			return i
		}
	}
	return -1
}

func (s *stubPlane) Region() string { return s.region }

func (s *stubPlane) VerifyCaller(_ context.Context) (*cloud.CallerIdentity, error) {
	s.record("VerifyCaller")
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &cloud.CallerIdentity{Account: "123456789012", ARN: "arn:aws:iam::123456789012:user/test"}, nil
}

func (s *stubPlane) GetIdentity(_ context.Context, name string) (*cloud.Identity, error) {
	s.record("GetIdentity")
	if id, ok := s.identities[name]; ok {
		return id, nil
	}
	return nil, fmt.Errorf("role %q: %w", name, cloud.ErrNotFound)
}

func (s *stubPlane) CreateIdentity(_ context.Context, name, _ string) (*cloud.Identity, error) {
	s.record("CreateIdentity")
	id := &cloud.Identity{Name: name, Locator: "arn:aws:iam::123456789012:role/" + name}
	s.identities[name] = id
	return id, nil
}

func (s *stubPlane) AttachExecutionPolicy(_ context.Context, name string) error {
	s.record("AttachExecutionPolicy")
	if _, ok := s.identities[name]; !ok {
		return fmt.Errorf("role %q: %w", name, cloud.ErrNotFound)
	}
	return nil
}

func (s *stubPlane) GetFunction(_ context.Context, name string) (*cloud.Function, error) {
	s.record("GetFunction")
	if fn, ok := s.functions[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("function %q: %w", name, cloud.ErrNotFound)
}

func (s *stubPlane) CreateFunction(_ context.Context, spec cloud.FunctionSpec, code []byte) (*cloud.Function, error) {
	s.record("CreateFunction")
	if s.createFunctionErr != nil {
		return nil, s.createFunctionErr
	}
	sum := sha256.Sum256(code)
	fn := &cloud.Function{
		Name:       spec.Name,
		Locator:    "arn:aws:lambda:" + s.region + ":123456789012:function:" + spec.Name,
		Runtime:    spec.Runtime,
		Handler:    spec.Handler,
		MemoryMB:   spec.MemoryMB,
		TimeoutSec: spec.TimeoutSec,
		CodeSHA:    hex.EncodeToString(sum[:]),
	}
	s.functions[spec.Name] = fn
	return fn, nil
}

func (s *stubPlane) UpdateFunctionCode(_ context.Context, name string, code []byte) error {
	s.record("UpdateFunctionCode")
	if s.updateCodeErr != nil {
		return s.updateCodeErr
	}
	fn, ok := s.functions[name]
	if !ok {
		return fmt.Errorf("function %q: %w", name, cloud.ErrNotFound)
	}
	sum := sha256.Sum256(code)
	fn.CodeSHA = hex.EncodeToString(sum[:])
	return nil
}

func (s *stubPlane) UpdateFunctionConfiguration(_ context.Context, spec cloud.FunctionSpec) error {
	s.record("UpdateFunctionConfiguration")
	fn, ok := s.functions[spec.Name]
	if !ok {
		return fmt.Errorf("function %q: %w", spec.Name, cloud.ErrNotFound)
	}
	fn.Runtime = spec.Runtime
	fn.Handler = spec.Handler
	fn.MemoryMB = spec.MemoryMB
	fn.TimeoutSec = spec.TimeoutSec
	return nil
}

func (s *stubPlane) AddInvokePermission(_ context.Context, functionName, statementID, _, _ string) error {
	s.record("AddInvokePermission")
	s.grants[functionName+"/"+statementID] = true
	return nil
}

func (s *stubPlane) GetFrontDoor(_ context.Context, name string) (*cloud.FrontDoor, error) {
	s.record("GetFrontDoor")
	if door, ok := s.doors[name]; ok {
		return door, nil
	}
	return nil, fmt.Errorf("front door %q: %w", name, cloud.ErrNotFound)
}

func (s *stubPlane) CreateFrontDoor(_ context.Context, name string) (*cloud.FrontDoor, error) {
	s.record("CreateFrontDoor")
	if s.createFrontDoorErr != nil {
		return nil, s.createFrontDoorErr
	}
	s.nextDoorID++
	door := &cloud.FrontDoor{ID: fmt.Sprintf("api%06d", s.nextDoorID), Name: name}
	s.doors[name] = door
	return door, nil
}

func (s *stubPlane) WireProxyRoute(_ context.Context, _, _ string) error {
	s.record("WireProxyRoute")
	return nil
}

func (s *stubPlane) PublishStage(_ context.Context, _, _ string) error {
	s.record("PublishStage")
	return nil
}

// --- helpers ---

func nodeWorkDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := "exports.handler = async () => ({statusCode: 200});"
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func testRequest(t *testing.T, workDir string) Request {
	t.Helper()
	return Request{
		FunctionName: "fn1",
		Runtime:      "nodejs20.x",
		Handler:      "index.handler",
		MemoryMB:     128,
		TimeoutSec:   30,
		RoleName:     "fn1-exec",
		WorkDir:      workDir,
	}
}

func newTestProvisioner(plane cloud.ControlPlane, opts ...Option) *Provisioner {
	opts = append([]Option{WithGraceWait(0)}, opts...)
	return NewProvisioner(plane, pack.NewBuilder(nil), nil, opts...)
}

// --- Deploy tests ---

func TestDeploy_FreshNoFrontDoor(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	p := newTestProvisioner(plane)
	req := testRequest(t, nodeWorkDir(t))

	report, err := p.Deploy(context.Background(), req)
	if err != nil {
		t.Fatalf("Deploy() error: %v", err)
	}

	if plane.count("CreateIdentity") != 1 {
		t.Errorf("CreateIdentity calls = %d, want 1", plane.count("CreateIdentity"))
	}
	if plane.count("AttachExecutionPolicy") != 1 {
		t.Errorf("AttachExecutionPolicy calls = %d, want 1", plane.count("AttachExecutionPolicy"))
	}
	if plane.count("CreateFunction") != 1 {
		t.Errorf("CreateFunction calls = %d, want 1", plane.count("CreateFunction"))
	}
	for _, op := range []string{"GetFrontDoor", "CreateFrontDoor", "WireProxyRoute", "PublishStage", "AddInvokePermission"} {
		if plane.count(op) != 0 {
			t.Errorf("%s calls = %d, want 0 without expose_http", op, plane.count(op))
		}
	}

	if report.FunctionName != "fn1" {
		t.Errorf("FunctionName = %q", report.FunctionName)
	}
	if report.Locator == "" {
		t.Error("report missing function locator")
	}
	if report.URL != "" {
		t.Errorf("URL = %q, want empty without front door", report.URL)
	}
	if report.Degraded {
		t.Error("report should not be degraded")
	}
}

func TestDeploy_NoEntryPoint_NoExternalCalls(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	p := newTestProvisioner(plane)
	req := testRequest(t, t.TempDir()) // empty workdir

	_, err := p.Deploy(context.Background(), req)
	if !errors.Is(err, pack.ErrNoEntryPoint) {
		t.Fatalf("Deploy() = %v, want ErrNoEntryPoint", err)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatal("expected a StageError")
	}
	if stageErr.Stage != StagePackage || stageErr.Kind != KindValidation {
		t.Errorf("StageError = %s/%s, want package/validation", stageErr.Stage, stageErr.Kind)
	}

	if len(plane.calls) != 0 {
		t.Errorf("control-plane calls = %v, want none", plane.calls)
	}
}

func TestDeploy_InvalidRequest_NoExternalCalls(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	p := newTestProvisioner(plane)
	req := testRequest(t, nodeWorkDir(t))
	req.Runtime = "perl5"

	_, err := p.Deploy(context.Background(), req)
	if !errors.Is(err, config.ErrInvalidRuntime) {
		t.Fatalf("Deploy() = %v, want ErrInvalidRuntime", err)
	}
	if len(plane.calls) != 0 {
		t.Errorf("control-plane calls = %v, want none", plane.calls)
	}
}

func TestDeploy_BlankHandler_NoExternalCalls(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	p := newTestProvisioner(plane)
	req := testRequest(t, nodeWorkDir(t))
	req.Handler = "   "

	_, err := p.Deploy(context.Background(), req)
	if !errors.Is(err, config.ErrInvalidHandler) {
		t.Fatalf("Deploy() = %v, want ErrInvalidHandler", err)
	}
	if len(plane.calls) != 0 {
		t.Errorf("control-plane calls = %v, want none", plane.calls)
	}
}

func TestDeploy_IdentityReuse(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	plane.identities["fn1-exec"] = &cloud.Identity{
		Name:    "fn1-exec",
		Locator: "arn:aws:iam::123456789012:role/fn1-exec",
	}

	var slept []time.Duration
	p := NewProvisioner(plane, pack.NewBuilder(nil), nil,
		WithGraceWait(10*time.Second),
		WithSleep(func(d time.Duration) { slept = append(slept, d) }))
	req := testRequest(t, nodeWorkDir(t))

	if _, err := p.Deploy(context.Background(), req); err != nil {
		t.Fatalf("Deploy() error: %v", err)
	}

	if plane.count("CreateIdentity") != 0 {
		t.Errorf("CreateIdentity calls = %d, want 0 for existing identity", plane.count("CreateIdentity"))
	}
	if plane.count("AttachExecutionPolicy") != 0 {
		t.Errorf("AttachExecutionPolicy calls = %d, want 0 for existing identity", plane.count("AttachExecutionPolicy"))
	}
	if len(slept) != 0 {
		t.Errorf("grace wait ran %d times for existing identity, want 0", len(slept))
	}
}

func TestDeploy_FreshIdentityWaitsForPropagation(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	var slept []time.Duration
	p := NewProvisioner(plane, pack.NewBuilder(nil), nil,
		WithGraceWait(10*time.Second),
		WithSleep(func(d time.Duration) { slept = append(slept, d) }))

	if _, err := p.Deploy(context.Background(), testRequest(t, nodeWorkDir(t))); err != nil {
		t.Fatalf("Deploy() error: %v", err)
	}

	if len(slept) != 1 || slept[0] != 10*time.Second {
		t.Errorf("grace waits = %v, want one 10s wait after identity creation", slept)
	}
}

func TestDeploy_UpdateOrdersCodeBeforeConfiguration(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	p := newTestProvisioner(plane)
	req := testRequest(t, nodeWorkDir(t))

	// First run creates the function, second run must update in place.
	if _, err := p.Deploy(context.Background(), req); err != nil {
		t.Fatalf("first Deploy() error: %v", err)
	}
	plane.calls = nil

	if _, err := p.Deploy(context.Background(), req); err != nil {
		t.Fatalf("second Deploy() error: %v", err)
	}

	if plane.count("CreateFunction") != 0 {
		t.Errorf("CreateFunction calls = %d on redeploy, want 0", plane.count("CreateFunction"))
	}

	codeIdx := plane.indexOf("UpdateFunctionCode")
	cfgIdx := plane.indexOf("UpdateFunctionConfiguration")
	if codeIdx == -1 || cfgIdx == -1 {
		t.Fatalf("update calls missing: %v", plane.calls)
	}
	if codeIdx > cfgIdx {
		t.Errorf("code update at %d after configuration update at %d: %v", codeIdx, cfgIdx, plane.calls)
	}
}

func TestDeploy_IdempotentWithFrontDoor(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	p := newTestProvisioner(plane)
	req := testRequest(t, nodeWorkDir(t))
	req.ExposeHTTP = true

	first, err := p.Deploy(context.Background(), req)
	if err != nil {
		t.Fatalf("first Deploy() error: %v", err)
	}
	if first.URL == "" {
		t.Fatal("first run produced no URL")
	}
	if plane.count("CreateFrontDoor") != 1 || plane.count("WireProxyRoute") != 1 || plane.count("PublishStage") != 1 {
		t.Fatalf("first run front-door calls: %v", plane.calls)
	}

	plane.calls = nil
	second, err := p.Deploy(context.Background(), req)
	if err != nil {
		t.Fatalf("second Deploy() error: %v", err)
	}

	for _, op := range []string{"CreateIdentity", "CreateFunction", "CreateFrontDoor", "WireProxyRoute", "PublishStage"} {
		if plane.count(op) != 0 {
			t.Errorf("%s calls = %d on redeploy, want 0", op, plane.count(op))
		}
	}

	if second.URL != first.URL {
		t.Errorf("URL changed across runs: %q vs %q", first.URL, second.URL)
	}
	if second.Runtime != first.Runtime || second.Handler != first.Handler ||
		second.MemoryMB != first.MemoryMB || second.TimeoutSec != first.TimeoutSec {
		t.Errorf("observable configuration diverged: %+v vs %+v", first, second)
	}

	if len(plane.doors) != 1 {
		t.Errorf("front doors = %d, want 1 (reused by lookup)", len(plane.doors))
	}
	if len(plane.identities) != 1 {
		t.Errorf("identities = %d, want 1", len(plane.identities))
	}
}

func TestDeploy_DegradedWhenFrontDoorFails(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	plane.createFrontDoorErr = errors.New("quota exceeded")
	p := newTestProvisioner(plane)
	req := testRequest(t, nodeWorkDir(t))
	req.ExposeHTTP = true

	report, err := p.Deploy(context.Background(), req)
	if err != nil {
		t.Fatalf("Deploy() = %v, want degraded success", err)
	}

	if !report.Degraded {
		t.Error("report should be marked degraded")
	}
	if report.DegradedReason == "" {
		t.Error("degraded report missing reason")
	}
	if report.Locator == "" {
		t.Error("function must still be reported as deployed")
	}
	if report.URL != "" {
		t.Errorf("URL = %q, want empty when front door failed", report.URL)
	}
	if _, ok := plane.functions["fn1"]; !ok {
		t.Error("function missing from control plane after degraded run")
	}
}

func TestDeploy_PreflightFailureIsFatal(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	plane.verifyErr = errors.New("invalid security token")
	p := newTestProvisioner(plane)

	_, err := p.Deploy(context.Background(), testRequest(t, nodeWorkDir(t)))

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Deploy() = %v, want StageError", err)
	}
	if stageErr.Stage != StagePreflight || stageErr.Kind != KindPrecondition {
		t.Errorf("StageError = %s/%s, want preflight/precondition", stageErr.Stage, stageErr.Kind)
	}

	// The probe runs before any mutating call.
	for _, op := range []string{"CreateIdentity", "CreateFunction", "CreateFrontDoor"} {
		if plane.count(op) != 0 {
			t.Errorf("%s ran after failed preflight", op)
		}
	}
}

func TestDeploy_FunctionFailureIsFatal(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	plane.createFunctionErr = errors.New("code storage limit exceeded")
	p := newTestProvisioner(plane)
	req := testRequest(t, nodeWorkDir(t))
	req.ExposeHTTP = true

	_, err := p.Deploy(context.Background(), req)

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Deploy() = %v, want StageError", err)
	}
	if stageErr.Stage != StageFunction || stageErr.Kind != KindExternal {
		t.Errorf("StageError = %s/%s, want function/external", stageErr.Stage, stageErr.Kind)
	}
	if plane.count("CreateFrontDoor") != 0 {
		t.Error("front-door stage ran after fatal function failure")
	}
}

func TestDeploy_RegrantsPermissionOnRedeploy(t *testing.T) {
	t.Parallel()

	plane := newStubPlane()
	p := newTestProvisioner(plane)
	req := testRequest(t, nodeWorkDir(t))
	req.ExposeHTTP = true

	if _, err := p.Deploy(context.Background(), req); err != nil {
		t.Fatalf("first Deploy() error: %v", err)
	}
	if _, err := p.Deploy(context.Background(), req); err != nil {
		t.Fatalf("second Deploy() error: %v", err)
	}

	// One statement per function, no matter how many deploys ran.
	if len(plane.grants) != 1 {
		t.Errorf("grants = %v, want exactly one statement", plane.grants)
	}
	if !plane.grants["fn1/"+InvokeStatementID] {
		t.Errorf("expected grant keyed by %q, got %v", InvokeStatementID, plane.grants)
	}
}
