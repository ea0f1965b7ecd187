package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	expectedRootDir := filepath.Join(homeDir, "pkgmark")
	if config.RootDir != expectedRootDir {
		t.Errorf("Expected root dir %s, got %s", expectedRootDir, config.RootDir)
	}
	if !config.ConfirmCascades {
		t.Error("Expected cascades to be confirmed by default")
	}
	if config.QuickMark {
		t.Error("Expected quick mark to be off by default")
	}
	if config.LogLevel != "info" {
		t.Errorf("Expected log level info, got %s", config.LogLevel)
	}
	if config.LogFormat != "console" {
		t.Errorf("Expected console log format, got %s", config.LogFormat)
	}
}

func TestGetDirectories(t *testing.T) {
	config := &Config{
		RootDir: "/test/root",
	}

	dirs := config.GetDirectories()

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Root", dirs.Root, "/test/root"},
		{"Config", dirs.Config, "/test/root/config"},
		{"DB", dirs.DB, "/test/root/db"},
		{"Logs", dirs.Logs, "/test/root/logs"},
		{"Markings", dirs.Markings, "/test/root/markings"},
		{"Receipts", dirs.Receipts, "/test/root/receipts"},
		{"Database", config.Database(), "file:/test/root/db/pkgmark.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.got)
			}
		})
	}

	config.DatabaseURL = "http://127.0.0.1:8080"
	if got := config.Database(); got != "http://127.0.0.1:8080" {
		t.Errorf("Expected configured database URL, got %s", got)
	}
}

func TestConfigSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	testConfig := &Config{
		RootDir:         filepath.Join(tmpDir, "pkgmark"),
		DatabaseURL:     "http://localhost:8080",
		ConfirmCascades: false,
		QuickMark:       true,
		LogLevel:        "debug",
	}

	if err := testConfig.Save(); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedConfig, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if *loadedConfig != *testConfig {
		t.Errorf("Expected %+v, got %+v", testConfig, loadedConfig)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	config, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.RootDir != filepath.Join(tmpDir, "pkgmark") || !config.ConfirmCascades {
		t.Errorf("Expected defaults, got %+v", config)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("PKGMARK_LOG_LEVEL", "warn")
	t.Setenv("PKGMARK_CONFIRM_CASCADES", "false")

	if err := (&Config{RootDir: tmpDir, ConfirmCascades: true, LogLevel: "debug"}).Save(); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.LogLevel != "warn" {
		t.Errorf("Expected log level from environment, got %s", config.LogLevel)
	}
	if config.ConfirmCascades {
		t.Error("Expected confirm_cascades from environment")
	}
}

func TestSet(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{"root_dir", "~/data", filepath.Join(home, "data"), false},
		{"root_dir", "", "", true},
		{"database_url", "http://db:8080", "http://db:8080", false},
		{"confirm_cascades", "false", "false", false},
		{"confirm_cascades", "maybe", "", true},
		{"quick_mark", "true", "true", false},
		{"log_level", "DEBUG", "debug", false},
		{"log_level", "loud", "", true},
		{"log_format", "JSON", "json", false},
		{"log_format", " console ", "console", false},
		{"log_format", "xml", "", true},
		{"github_token", "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			config := DefaultConfig()
			err := config.Set(tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := config.Get(tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	config := &Config{
		RootDir: tmpDir,
	}

	if err := config.EnsureDirectories(); err != nil {
		t.Fatalf("Failed to ensure directories: %v", err)
	}

	// Check if all directories were created
	dirs := config.GetDirectories()
	for _, dir := range []string{
		dirs.Root,
		dirs.Config,
		dirs.DB,
		dirs.Logs,
		dirs.Markings,
		dirs.Receipts,
	} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("Directory %s was not created", dir)
		}
	}
}
