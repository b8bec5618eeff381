package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used below the XDG base directories.
const AppName = "git"

// SettingsFileNames lists the settings files looked up in a directory, in the
// order they are merged. Later files override earlier ones.
var SettingsFileNames = []string{"config.json", "config.jsonc", "config.yaml", "config.yml"}

// GlobalConfigDir returns $XDG_CONFIG_HOME/git (or its platform default).
func GlobalConfigDir() string {
	return filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), AppName)
}

// GlobalConfigPaths returns the candidate global settings files. When
// GIT_CONFIG_GLOBAL names a file only that file is considered.
func GlobalConfigPaths(env Env) []string {
	if env.ConfigGlobal != "" {
		return []string{env.ConfigGlobal}
	}
	return candidates(GlobalConfigDir())
}

// RepositoryConfigPaths returns the candidate settings files stored inside a
// control directory.
func RepositoryConfigPaths(controlDir string) []string {
	if controlDir == "" {
		return nil
	}
	return candidates(controlDir)
}

func candidates(dir string) []string {
	paths := make([]string, 0, len(SettingsFileNames))
	for _, name := range SettingsFileNames {
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}
