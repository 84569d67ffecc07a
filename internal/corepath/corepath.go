// Package corepath centralizes the per-user config directory layout:
// config.json, ssh/known_hosts, and logs/ all live under one
// application directory, resolved by ConfigDir.
package corepath

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir returns the per-user application directory, creating it if
// it does not already exist; its ssh/ and logs/ subdirectories are
// created by KnownHostsPath and LogDir.
// Windows: %APPDATA%\QoreDB. Everything else: $HOME/.qoredb.
func ConfigDir() (string, error) {
	base, name, err := baseDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func baseDir() (base, name string, err error) {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return appdata, "QoreDB", nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", err
	}
	return home, ".qoredb", nil
}

// ConfigFilePath returns the path to config.json under ConfigDir.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// KnownHostsPath returns the path to the app-owned ssh/known_hosts file,
// creating the ssh/ subdirectory if needed.
func KnownHostsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	sshDir := filepath.Join(dir, "ssh")
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(sshDir, "known_hosts"), nil
}

// LogDir returns the logs/ directory under ConfigDir, creating it if
// needed.
func LogDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", err
	}
	return logDir, nil
}
