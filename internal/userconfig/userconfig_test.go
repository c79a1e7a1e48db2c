package userconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsukumogami/embeddb/internal/config"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ToolsVersion != DefaultToolsVersion {
		t.Errorf("ToolsVersion = %q, want %q", cfg.ToolsVersion, DefaultToolsVersion)
	}
	if cfg.VerifySignatures {
		t.Error("expected VerifySignatures to default to false")
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `download_origin = "https://mirror.example.com/"
tools_version = "100.6.0"
verify_signatures = true
signing_key_file = "/keys/server.asc"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ToolsVersion != "100.6.0" {
		t.Errorf("ToolsVersion = %q", cfg.ToolsVersion)
	}
	if !cfg.VerifySignatures || cfg.SigningKeyFile != "/keys/server.asc" {
		t.Errorf("unexpected signature settings: %+v", cfg)
	}

	t.Setenv(config.EnvDownloadOrigin, "")
	if got := cfg.Origin(); got != "https://mirror.example.com" {
		t.Errorf("Origin() = %q", got)
	}

	t.Setenv(config.EnvDownloadOrigin, "https://env.example.com")
	if got := cfg.Origin(); got != "https://env.example.com" {
		t.Errorf("Origin() with env override = %q", got)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("this is not valid toml [[["), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := LoadFrom(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.Set("tools_version", "100.7.0"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("verify_signatures", "true"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if loaded.ToolsVersion != "100.7.0" || !loaded.VerifySignatures {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestGetSet(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Set("verify_signatures", "maybe"); err == nil {
		t.Error("expected error for invalid bool")
	}
	if err := cfg.Set("nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, ok := cfg.Get("nope"); ok {
		t.Error("Get of unknown key should report false")
	}
	if v, ok := cfg.Get("TOOLS_VERSION"); !ok || v != DefaultToolsVersion {
		t.Errorf("Get(TOOLS_VERSION) = %q, %v", v, ok)
	}
	for key := range AvailableKeys() {
		if _, ok := cfg.Get(key); !ok {
			t.Errorf("AvailableKeys lists %q but Get does not know it", key)
		}
	}
}
