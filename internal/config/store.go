// Package config handles loading and saving the RTD2142 updater's quirk
// configuration — the `RealtekMstDpAuxName` key (and any future quirk
// keys) spec.md §6 says the core consumes.
package config

import "github.com/dpmst/rtd2142fw/internal/models"

// Store is the interface for persisting quirk configuration.
type Store interface {
	// Load loads the current config. Returns DefaultQuirkConfig if no file exists.
	Load() (*models.QuirkConfig, error)

	// Save persists the config. Implementations may debounce rapid saves.
	Save(cfg *models.QuirkConfig) error

	// Path returns the file path used by this store.
	Path() string

	// Flush forces an immediate write of any pending config.
	Flush() error
}
