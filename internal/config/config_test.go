// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithNameOverride(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{
		WorkDir:   t.TempDir(),
		Overrides: map[string]any{"function.name": "fn1"},
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Function.Name != "fn1" {
		t.Errorf("Name = %q, want fn1", cfg.Function.Name)
	}
	if cfg.Function.Runtime != "nodejs20.x" {
		t.Errorf("Runtime = %q, want default nodejs20.x", cfg.Function.Runtime)
	}
	if cfg.Function.MemoryMB != 128 || cfg.Function.TimeoutSec != 30 {
		t.Errorf("limits = %d/%d, want 128/30", cfg.Function.MemoryMB, cfg.Function.TimeoutSec)
	}
	if cfg.RoleName != DefaultRoleName {
		t.Errorf("RoleName = %q, want %q", cfg.RoleName, DefaultRoleName)
	}
	if cfg.ExposeHTTP {
		t.Error("ExposeHTTP should default to false")
	}
	if cfg.Output != OutputTable {
		t.Errorf("Output = %q, want table", cfg.Output)
	}
}

func TestLoad_ImplicitConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yaml := `
function:
  name: billing-hook
  runtime: python3.12
  memory_mb: 256
region: eu-west-1
expose_http: true
`
	if err := os.WriteFile(filepath.Join(dir, "fnup.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{WorkDir: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Function.Name != "billing-hook" {
		t.Errorf("Name = %q", cfg.Function.Name)
	}
	if cfg.Function.Runtime != "python3.12" {
		t.Errorf("Runtime = %q", cfg.Function.Runtime)
	}
	if cfg.Function.MemoryMB != 256 {
		t.Errorf("MemoryMB = %d", cfg.Function.MemoryMB)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if !cfg.ExposeHTTP {
		t.Error("ExposeHTTP should be true")
	}
	// Handler keeps its default; validation still passes because the
	// python canonical handler is only a packaging concern.
	if cfg.Function.TimeoutSec != 30 {
		t.Errorf("TimeoutSec = %d, want default 30", cfg.Function.TimeoutSec)
	}
}

func TestLoad_ExplicitConfigFileMissing(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_FlagOverridesBeatFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yaml := "function:\n  name: from-file\nregion: eu-west-1\n"
	if err := os.WriteFile(filepath.Join(dir, "fnup.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{
		WorkDir: dir,
		Overrides: map[string]any{
			"function.name": "from-flag",
			"region":        "us-west-2",
		},
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Function.Name != "from-flag" {
		t.Errorf("Name = %q, want from-flag", cfg.Function.Name)
	}
	if cfg.Region != "us-west-2" {
		t.Errorf("Region = %q, want us-west-2", cfg.Region)
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{
		WorkDir: t.TempDir(),
		Overrides: map[string]any{
			"function.name":    "fn1",
			"function.runtime": "cobol85",
		},
	})
	if !errors.Is(err, ErrInvalidRuntime) {
		t.Fatalf("Load() = %v, want ErrInvalidRuntime", err)
	}
}

func TestLoad_InvalidConfigReturnsResolvedValues(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{
		WorkDir: t.TempDir(),
		Overrides: map[string]any{
			"function.name":    "fn1",
			"function.runtime": "cobol85",
			"region":           "eu-central-1",
		},
	})
	if !errors.Is(err, ErrInvalidRuntime) {
		t.Fatalf("Load() = %v, want ErrInvalidRuntime", err)
	}
	if cfg == nil {
		t.Fatal("validation failure must still return the resolved config")
	}
	if cfg.Function.Runtime != "cobol85" {
		t.Errorf("Runtime = %q, want the resolved cobol85", cfg.Function.Runtime)
	}
	if cfg.Region != "eu-central-1" {
		t.Errorf("Region = %q, want eu-central-1", cfg.Region)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProvider().Load(ctx, LoadOptions{})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}
