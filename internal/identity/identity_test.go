package identity_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dpmst/rtd2142fw/internal/identity"
)

func TestGetVersion_Fallback(t *testing.T) {
	dir := t.TempDir()
	got := identity.GetVersion(dir)
	if got != identity.DefaultVersion {
		t.Errorf("GetVersion(%q) = %q; want %q", dir, got, identity.DefaultVersion)
	}
}

func TestGetVersion_FromFile(t *testing.T) {
	dir := t.TempDir()
	want := "0.2.0"
	meta := map[string]interface{}{"version": want}
	data, _ := json.Marshal(meta)
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	got := identity.GetVersion(dir)
	if got != want {
		t.Errorf("GetVersion(%q) = %q; want %q", dir, got, want)
	}
}

func TestGetVersion_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	got := identity.GetVersion(dir)
	if got != identity.DefaultVersion {
		t.Errorf("GetVersion with invalid JSON = %q; want %q", got, identity.DefaultVersion)
	}
}

func TestGetHostname(t *testing.T) {
	h := identity.GetHostname()
	if h == "" {
		t.Error("GetHostname() returned empty string")
	}
}
