// Package paths resolves where docgraph keeps its configuration, documents
// and external data.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "docgraph"

// Directory and file names under the data directory.
const (
	DefaultConfigDirName = ".docgraph"
	DefaultDataDirName   = ".docgraph-data"
	ConfigFileName       = "config.yaml"
	BlobDirName          = "external"
	DatabaseFileName     = "docgraph.db"
	DocumentFileName     = "document.json"
	ExportFileName       = "objects.jsonl"
)

// Environment variables overriding the directories.
const (
	EnvConfigDir = "DOCGRAPH_CONFIG_DIR"
	EnvDataDir   = "DOCGRAPH_DATA_DIR"
)

// platformDir holds platform lookups that tests replace.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// userDir returns $xdgEnv/docgraph, or ~/<linuxFallback>/docgraph, on Linux
// and the user config directory elsewhere.
func userDir(xdgEnv string, linuxFallback ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, linuxFallback...), AppName)...), nil
}

// DefaultConfigDir returns the platform configuration directory:
// $XDG_CONFIG_HOME/docgraph or ~/.config/docgraph on Linux, the user config
// directory elsewhere.
func DefaultConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory:
// $XDG_DATA_HOME/docgraph or ~/.local/share/docgraph on Linux, the user
// config directory elsewhere.
func DefaultDataDir() (string, error) {
	return userDir("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir picks the configuration directory: flag, then
// DOCGRAPH_CONFIG_DIR, then DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir picks the data directory: flag, then the config file value,
// then DOCGRAPH_DATA_DIR, then .docgraph-data under the working directory.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, candidate := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if candidate != "" {
			return filepath.Abs(candidate)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the config file path inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// BlobDir returns the default external-data directory inside dataDir.
func BlobDir(dataDir string) string {
	return filepath.Join(dataDir, BlobDirName)
}
