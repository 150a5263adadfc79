// Package config handles settings loading, saving, and path management for
// the global ~/.arena directory and per-session artifact directories.
package config

import (
	"os"
	"path/filepath"
)

const (
	// GlobalDirName is the name of the global arena directory.
	GlobalDirName = ".arena"

	// SessionsDirName is the name of the sessions directory.
	SessionsDirName = "sessions"

	// AgentsDirName holds per-agent status files within a session.
	AgentsDirName = "agents"

	// ControlDirName holds per-agent control signal files within a session.
	ControlDirName = "control"

	// WorktreesDirName holds per-agent worktrees within a session.
	WorktreesDirName = "worktrees"
)

// File names
const (
	SettingsFileName = "settings.yaml"
	SessionFileName  = "session.json"
)

// GlobalDir returns the path to the global arena directory (~/.arena/).
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, GlobalDirName), nil
}

// GlobalSettingsFile returns the path to the settings.yaml file.
func GlobalSettingsFile() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}

// SessionsRoot returns the directory under which all session artifact
// directories live.
func SessionsRoot() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SessionsDirName), nil
}

// SessionDir returns the artifact directory for one session.
func SessionDir(root, sessionID string) string {
	return filepath.Join(root, sessionID)
}

// AgentsDir returns the per-agent status file directory for a session.
func AgentsDir(sessionDir string) string {
	return filepath.Join(sessionDir, AgentsDirName)
}

// ControlDir returns the per-agent control signal directory for a session.
func ControlDir(sessionDir string) string {
	return filepath.Join(sessionDir, ControlDirName)
}

// WorktreesDir returns the per-agent worktree directory for a session.
func WorktreesDir(sessionDir string) string {
	return filepath.Join(sessionDir, WorktreesDirName)
}

// SessionFile returns the path of the consolidated session status document.
func SessionFile(sessionDir string) string {
	return filepath.Join(sessionDir, SessionFileName)
}
