// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates the deployment configuration.
//
// Configuration sources, lowest precedence first: built-in defaults, an
// optional config file (fnup.yaml in the working directory, or a path
// given explicitly), FNUP_-prefixed environment variables, and command
// flags bound by the CLI layer. The result is a single immutable Config
// value handed to every stage; nothing downstream reads the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fnup-cli/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "fnup"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "fnup"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "FNUP"
)

// DefaultConfig returns a Config with default values. The function name has
// no default: it must be supplied by the caller.
func DefaultConfig() *Config {
	return &Config{
		Function: FunctionSettings{
			Runtime:    "nodejs20.x",
			Handler:    "index.handler",
			MemoryMB:   128,
			TimeoutSec: 30,
		},
		Region:   "us-east-1",
		RoleName: DefaultRoleName,
		WorkDir:  ".",
		Output:   OutputTable,
	}
}

// loadWithOptions performs option-driven config loading. It does not mutate
// any package-level state, so tests can call it concurrently.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("function.name", defaults.Function.Name)
	v.SetDefault("function.runtime", string(defaults.Function.Runtime))
	v.SetDefault("function.handler", defaults.Function.Handler)
	v.SetDefault("function.memory_mb", defaults.Function.MemoryMB)
	v.SetDefault("function.timeout_sec", defaults.Function.TimeoutSec)
	v.SetDefault("function.env", map[string]string{})
	v.SetDefault("region", defaults.Region)
	v.SetDefault("role_name", defaults.RoleName)
	v.SetDefault("expose_http", defaults.ExposeHTTP)
	v.SetDefault("workdir", defaults.WorkDir)
	v.SetDefault("output", string(defaults.Output))
	v.SetDefault("verbose", defaults.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// An explicit config file path is used exclusively; a missing file is an
	// error. Otherwise fnup.yaml in the working directory is picked up when
	// present and silently skipped when absent.
	if opts.ConfigFilePath != "" {
		if _, err := os.Stat(opts.ConfigFilePath); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(err).
				BuildError()
		}
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("parse configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Check the YAML syntax").
				Wrap(err).
				BuildError()
		}
	} else {
		workDir := opts.WorkDir
		if workDir == "" {
			workDir = "."
		}
		implicit := filepath.Join(workDir, ConfigFileName+"."+ConfigFileExt)
		if _, err := os.Stat(implicit); err == nil {
			v.SetConfigFile(implicit)
			if err := v.ReadInConfig(); err != nil {
				return nil, issue.NewErrorContext().
					WithOperation("parse configuration").
					WithResource(implicit).
					WithSuggestion("Check the YAML syntax").
					Wrap(err).
					BuildError()
			}
		}
	}

	// Flag overrides bound by the CLI layer take the highest precedence.
	for key, val := range opts.Overrides {
		v.Set(key, val)
	}

	cfg := &Config{
		Function: FunctionSettings{
			Name:       v.GetString("function.name"),
			Runtime:    Runtime(v.GetString("function.runtime")),
			Handler:    v.GetString("function.handler"),
			MemoryMB:   v.GetInt32("function.memory_mb"),
			TimeoutSec: v.GetInt32("function.timeout_sec"),
			Env:        v.GetStringMapString("function.env"),
		},
		Region:     v.GetString("region"),
		RoleName:   v.GetString("role_name"),
		ExposeHTTP: v.GetBool("expose_http"),
		WorkDir:    v.GetString("workdir"),
		Output:     OutputMode(v.GetString("output")),
		Verbose:    v.GetBool("verbose"),
	}

	if opts.WorkDir != "" {
		cfg.WorkDir = opts.WorkDir
	}

	// The resolved values come back alongside a validation error so that
	// display-only callers can show exactly what was resolved.
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
