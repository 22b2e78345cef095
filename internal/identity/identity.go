// Package identity provides build/runtime identity information for the
// rtd2142fw daemon itself (as opposed to the hub's own firmware version,
// which is reported by internal/mst from the dual-bank info register read).
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DefaultVersion is the fallback version string when metadata.json is not found.
const DefaultVersion = "0.1.0-dev"

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "rtd2142fw"
	}
	return h
}

// GetVersion reads the daemon version from <configDir>/metadata.json.
// Falls back to DefaultVersion if the file is missing or unreadable.
func GetVersion(configDir string) string {
	data, err := os.ReadFile(filepath.Join(configDir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return DefaultVersion
	}

	if v, ok := meta["version"].(string); ok && v != "" {
		return v
	}
	return DefaultVersion
}
