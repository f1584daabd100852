package config

import (
	"os"
	"path/filepath"
)

// PriomatrixPath returns the root directory for priomatrix data.
// It uses $PRIOMATRIX_PATH if set, otherwise defaults to ~/.priomatrix.
func PriomatrixPath() string {
	if v := os.Getenv("PRIOMATRIX_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".priomatrix")
	}
	return filepath.Join(home, ".priomatrix")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(PriomatrixPath(), "config.jsonc")
}

// DotenvPath returns the path to the .env file.
func DotenvPath() string {
	return filepath.Join(PriomatrixPath(), ".env")
}

// DataPath returns the default storage directory.
func DataPath() string {
	return filepath.Join(PriomatrixPath(), "data")
}

// AuditPath returns the default audit log directory.
func AuditPath() string {
	return filepath.Join(PriomatrixPath(), "audit")
}

// HeartbeatPath returns the file a running gateway refreshes.
func HeartbeatPath() string {
	return filepath.Join(PriomatrixPath(), "gateway.json")
}
