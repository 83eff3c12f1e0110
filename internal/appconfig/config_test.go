package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docsync.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"baseUrl": "https://api.example.com",
		"token": "tok_1",
		"containerId": "sbx_1",
		"debounceMillis": 800
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DebounceMillis != 800 {
		t.Fatalf("expected file value, got %d", cfg.DebounceMillis)
	}
	if cfg.PollMillis != 5000 || cfg.MaxRetries != 3 || cfg.CacheSize != 256 {
		t.Fatalf("expected defaults for unset fields, got %+v", cfg)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `{
		"baseUrl": "https://api.example.com",
		"token": "tok_file",
		"containerId": "sbx_1"
	}`)
	t.Setenv("DOCSYNC_TOKEN", "tok_env")
	t.Setenv("DOCSYNC_DEBOUNCE_MS", "2000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Token != "tok_env" {
		t.Fatalf("expected environment token to win, got %q", cfg.Token)
	}
	if cfg.DebounceMillis != 2000 {
		t.Fatalf("expected environment debounce to win, got %d", cfg.DebounceMillis)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	path := writeConfig(t, `{
		"baseUrl": "https://api.example.com",
		"token": "tok_1",
		"containerId": "sbx_1",
		"debounceMillis": 5,
		"surpriseField": true
	}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected a schema violation error")
	}
}

func TestLoadRequiresCoreFields(t *testing.T) {
	path := writeConfig(t, `{"baseUrl": "https://api.example.com"}`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected a missing-token error, got %v", err)
	}
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("DOCSYNC_BASE_URL", "https://api.example.com")
	t.Setenv("DOCSYNC_TOKEN", "tok_env")
	t.Setenv("DOCSYNC_CONTAINER", "sbx_env")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ContainerID != "sbx_env" {
		t.Fatalf("expected environment container, got %q", cfg.ContainerID)
	}
}
