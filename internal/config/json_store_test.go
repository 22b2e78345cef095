package config_test

import (
	"path/filepath"
	"testing"

	"github.com/dpmst/rtd2142fw/internal/config"
	"github.com/dpmst/rtd2142fw/internal/models"
)

func TestJSONStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := config.NewJSONStore(dir)

	cfg := &models.QuirkConfig{DpAuxName: "DPDDC-E"}
	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DpAuxName != "DPDDC-E" {
		t.Errorf("DpAuxName = %q, want %q", got.DpAuxName, "DPDDC-E")
	}
}

func TestJSONStoreLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	store := config.NewJSONStore(filepath.Join(dir, "nested"))

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DpAuxName != "" {
		t.Errorf("expected default config, got %+v", got)
	}
}

func TestJSONStorePath(t *testing.T) {
	store := config.NewJSONStore("/tmp/foo")
	if store.Path() != "/tmp/foo/quirks.json" {
		t.Errorf("Path() = %q", store.Path())
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	store := config.NewMemStore()
	cfg := &models.QuirkConfig{DpAuxName: "DPDDC-F"}
	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DpAuxName != "DPDDC-F" {
		t.Errorf("DpAuxName = %q", got.DpAuxName)
	}
}
