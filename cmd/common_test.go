package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("valid config loads and validates", func(t *testing.T) {
		path := writeConfigFile(t, `
unit:
  name: Test Unit
pack:
  main:
    name: Main Pack
    mods:
      - "@cba_a3"
server:
  primary:
    name: Primary
    address: 1.2.3.4
    pack: main
`)
		cfg, err := loadConfig(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Unit.Name != "Test Unit" {
			t.Errorf("unit name = %q; want %q", cfg.Unit.Name, "Test Unit")
		}
	})

	t.Run("server referencing missing pack fails validation", func(t *testing.T) {
		path := writeConfigFile(t, `
pack:
  main:
    name: Main Pack
    mods: ["@cba_a3"]
server:
  primary:
    name: Primary
    address: 1.2.3.4
    pack: nonexistent
`)
		if _, err := loadConfig(path); err == nil {
			t.Fatal("expected a validation error for a missing pack reference")
		}
	})

	t.Run("missing file returns an error", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Fatal("expected an error for a nonexistent config file")
		}
	})

	t.Run("malformed yaml returns an error", func(t *testing.T) {
		path := writeConfigFile(t, "not: [valid: yaml")
		if _, err := loadConfig(path); err == nil {
			t.Fatal("expected a parse error for malformed yaml")
		}
	})
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncra.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	return path
}
