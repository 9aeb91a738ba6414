// Package where implements a cross-platform resolver for application-specific filesystem paths.
package where

import (
	"os"
	"path/filepath"

	"github.com/dotkeep-cli/dotkeep/constant"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/samber/lo"
)

// EnvConfigPath is the environment variable identifier used to override the default configuration directory.
const EnvConfigPath = "DOTKEEP_CONFIG_PATH"

// EnvTreePath is the environment variable identifier used to override the tracked tree root.
const EnvTreePath = "DOTKEEP_TREE_PATH"

// EnvAuxConfigPath is the environment variable identifier used to override the auxiliary configuration directory.
const EnvAuxConfigPath = "DOTKEEP_AUX_CONFIG_PATH"

// ensureDir guarantees the existence of a directory at the specified path, creating it if necessary.
func ensureDir(path string) string {
	lo.Must0(filesystem.API().MkdirAll(path, os.ModePerm))
	return path
}

// Config resolves the absolute path to the primary application configuration directory.
// It prioritizes the XDG_CONFIG_HOME specification on Linux and equivalent user profile paths on Darwin and Windows.
// Direct override: The path resolution can be explicitly specified via the DOTKEEP_CONFIG_PATH environment variable.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return ensureDir(custom)
	}

	base := lo.Must(os.UserConfigDir())
	return ensureDir(filepath.Join(base, constant.Dotkeep))
}

// Tree resolves the absolute path to the root of the tracked dotfiles tree.
// Direct override: The path resolution can be explicitly specified via the DOTKEEP_TREE_PATH environment variable.
func Tree() string {
	if custom, ok := os.LookupEnv(EnvTreePath); ok {
		return ensureDir(custom)
	}

	home := lo.Must(os.UserHomeDir())
	return ensureDir(filepath.Join(home, ".dotfiles"))
}

// AuxConfig resolves the absolute path to the auxiliary configuration directory preserved across updates and rollbacks.
// Direct override: The path resolution can be explicitly specified via the DOTKEEP_AUX_CONFIG_PATH environment variable.
func AuxConfig() string {
	if custom, ok := os.LookupEnv(EnvAuxConfigPath); ok {
		return ensureDir(custom)
	}

	base := lo.Must(os.UserConfigDir())
	return ensureDir(filepath.Join(base, constant.Dotkeep, "aux"))
}

// State resolves the absolute path to the application state directory inside the tracked tree.
// It lives inside the tree so registries survive single-file restores, and it is part of the
// rollback preserve-set so it survives whole-tree replacement.
func State() string {
	return ensureDir(filepath.Join(Tree(), ".dotkeep"))
}

// Backups resolves the absolute path to the root directory holding all backup registries.
func Backups() string {
	return ensureDir(filepath.Join(State(), "backups"))
}

// Registry resolves the absolute path to the backup registry directory for the named kind.
func Registry(kind string) string {
	return ensureDir(filepath.Join(Backups(), kind))
}

// Logs resolves the absolute path to the directory used for application diagnostic and audit logs.
func Logs() string {
	return ensureDir(filepath.Join(Config(), "logs"))
}

// VersionCache resolves the absolute path to the localized remote version cache file.
func VersionCache() string {
	return filepath.Join(Config(), "version.json")
}

// Temp resolves a unique, volatile filesystem path for transient application artifacts.
func Temp() string {
	return ensureDir(filepath.Join(os.TempDir(), constant.Dotkeep))
}
