package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the environment variables the dispatch layer understands.
type Env struct {
	// Dir names the control directory explicitly and disables discovery.
	Dir string `env:"GIT_DIR"`
	// WorkTree names the work tree explicitly.
	WorkTree string `env:"GIT_WORK_TREE"`
	// CeilingDirs stops upward discovery before entering these directories.
	CeilingDirs []string `env:"GIT_CEILING_DIRECTORIES" envSeparator:":"`
	// Pager is the preferred pager program.
	Pager string `env:"GIT_PAGER"`
	// SystemPager is the generic pager program, consulted after core.pager.
	SystemPager string `env:"PAGER"`
	// PagerInUse is set for child processes of a command whose output is paged.
	PagerInUse bool `env:"GIT_PAGER_IN_USE"`
	// SuperPrefix is the super-prefix handed down by a parent invocation.
	SuperPrefix string `env:"GIT_INTERNAL_SUPER_PREFIX"`
	// Trace enables dispatch tracing: "1"/"true" for stderr, or an absolute file path.
	Trace string `env:"GIT_TRACE"`
	// ConfigGlobal replaces the global settings file.
	ConfigGlobal string `env:"GIT_CONFIG_GLOBAL"`
}

// LoadEnv parses Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// LoadEnvFrom parses Env from the given variables instead of the process
// environment.
func LoadEnvFrom(vars map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
