package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadDefaults verifies a missing config file yields the stock Pi
// install defaults, with derived paths filled in.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Camera.Bin != "gphoto2" {
		t.Errorf("Expected gphoto2 binary, got %q", cfg.Camera.Bin)
	}
	if cfg.Camera.CaptureCooldown != 1200*time.Millisecond {
		t.Errorf("Expected 1.2s cooldown, got %v", cfg.Camera.CaptureCooldown)
	}
	if cfg.Camera.CaptureAttempts != 2 || cfg.Camera.FetchAttempts != 3 {
		t.Errorf("Unexpected retry budgets: %+v", cfg.Camera)
	}
	if cfg.Web.Port != 8090 {
		t.Errorf("Expected port 8090, got %d", cfg.Web.Port)
	}
	if cfg.Paths.Photos != filepath.Join(cfg.Paths.Base, "photos") {
		t.Errorf("Expected derived photos path, got %q", cfg.Paths.Photos)
	}
	if cfg.History.Path != filepath.Join(cfg.Paths.Base, "history.db") {
		t.Errorf("Expected derived history path, got %q", cfg.History.Path)
	}
}

// TestLoadFromFile verifies explicit settings override the defaults.
func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	content := `
camera:
  bin: /usr/local/bin/gphoto2
  capture_attempts: 4
paths:
  base: ` + dir + `
web:
  port: 9000
`
	if err := os.WriteFile(cfgFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Camera.Bin != "/usr/local/bin/gphoto2" {
		t.Errorf("Expected overridden binary, got %q", cfg.Camera.Bin)
	}
	if cfg.Camera.CaptureAttempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", cfg.Camera.CaptureAttempts)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Web.Port)
	}
	if cfg.Paths.Www != filepath.Join(dir, "www") {
		t.Errorf("Expected derived www under base, got %q", cfg.Paths.Www)
	}
	// Untouched defaults survive.
	if cfg.Camera.FetchAttempts != 3 {
		t.Errorf("Expected default fetch attempts, got %d", cfg.Camera.FetchAttempts)
	}
}

// TestValidate verifies the rejection cases.
func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Camera: Camera{Bin: "gphoto2", CaptureAttempts: 2, FetchAttempts: 3},
			Paths:  Paths{Base: "/data"},
			Web:    Web{Host: "0.0.0.0", Port: 8090},
		}
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty bin", func(c *Config) { c.Camera.Bin = "" }},
		{"zero attempts", func(c *Config) { c.Camera.CaptureAttempts = 0 }},
		{"negative cooldown", func(c *Config) { c.Camera.CaptureCooldown = -time.Second }},
		{"empty base", func(c *Config) { c.Paths.Base = "" }},
		{"bad port", func(c *Config) { c.Web.Port = 70000 }},
	}

	validCfg := valid()
	if err := validCfg.Validate(); err != nil {
		t.Fatalf("Expected valid config to pass, got %v", err)
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}
