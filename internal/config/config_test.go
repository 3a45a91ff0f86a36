package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	setDefaults()
	t.Cleanup(func() {
		viper.Reset()
		setDefaults()
	})
}

func TestCurrentDefaults(t *testing.T) {
	resetViper(t)
	t.Setenv("HOME", t.TempDir())
	Load()

	s := Current()
	if s.TemplateDir != "example" {
		t.Errorf("TemplateDir = %q, want %q", s.TemplateDir, "example")
	}
	if s.FrontendDir != "" {
		t.Errorf("FrontendDir = %q, want empty", s.FrontendDir)
	}
	if s.SkipInstall {
		t.Error("SkipInstall should default to false")
	}
	if s.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", s.LogLevel, "warn")
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	resetViper(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PROJBUILDER_TEMPLATE_DIR", "templates/go-web")
	t.Setenv("PROJBUILDER_SKIP_INSTALL", "true")
	Load()

	s := Current()
	if s.TemplateDir != "templates/go-web" {
		t.Errorf("TemplateDir = %q, want %q", s.TemplateDir, "templates/go-web")
	}
	if !s.SkipInstall {
		t.Error("SkipInstall should be true from env")
	}
}

func TestSetWritesConfigFile(t *testing.T) {
	resetViper(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	Load()

	if err := Set(KeyFrontendDir, "web"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(home, ".projbuilder", "config.yaml"))
	if err != nil {
		t.Fatalf("reading config file: %v", err)
	}
	if !strings.Contains(string(data), "frontend_dir: web") {
		t.Errorf("config file missing key, got:\n%s", data)
	}
	if got := Get(KeyFrontendDir); got != "web" {
		t.Errorf("Get(%q) = %q, want %q", KeyFrontendDir, got, "web")
	}
}

func TestIsKnown(t *testing.T) {
	for _, k := range Keys {
		if !IsKnown(k) {
			t.Errorf("IsKnown(%q) = false", k)
		}
	}
	if IsKnown("catalog_repo") {
		t.Error("IsKnown should reject unrecognized keys")
	}
}
