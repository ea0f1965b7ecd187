package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config represents the pkgmark configuration
type Config struct {
	// Directory where pkgmark stores all its data
	RootDir string `json:"root_dir" mapstructure:"root_dir"`
	// Store location, a libsql URL. Empty means the local database file.
	DatabaseURL string `json:"database_url,omitempty" mapstructure:"database_url"`
	// Ask before marking packages besides the selected one
	ConfirmCascades bool `json:"confirm_cascades" mapstructure:"confirm_cascades"`
	// Space in the browser toggles installation instead of showing the action menu
	QuickMark bool   `json:"quick_mark" mapstructure:"quick_mark"`
	LogLevel  string `json:"log_level" mapstructure:"log_level"`
	// console or json
	LogFormat string `json:"log_format" mapstructure:"log_format"`
}

// Directories represents the pkgmark directory structure
type Directories struct {
	// Root directory for all pkgmark data
	Root string
	// Directory for configuration files
	Config string
	// Directory for database files
	DB string
	// Directory for log files
	Logs string
	// Directory for exported markings
	Markings string
	// Directory for install receipts
	Receipts string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return &Config{
		RootDir:         filepath.Join(homeDir, "pkgmark"),
		ConfirmCascades: true,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// GetDirectories returns the directory structure based on the root directory
func (c *Config) GetDirectories() *Directories {
	return &Directories{
		Root:     c.RootDir,
		Config:   filepath.Join(c.RootDir, "config"),
		DB:       filepath.Join(c.RootDir, "db"),
		Logs:     filepath.Join(c.RootDir, "logs"),
		Markings: filepath.Join(c.RootDir, "markings"),
		Receipts: filepath.Join(c.RootDir, "receipts"),
	}
}

// Database returns the store URL, defaulting to a file in the db directory
func (c *Config) Database() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "file:" + filepath.Join(c.GetDirectories().DB, "pkgmark.db")
}

// Path returns the location of the configuration file
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "pkgmark", "config.json"), nil
}

func newViper(path string) *viper.Viper {
	def := DefaultConfig()

	v := viper.New()
	v.SetDefault("root_dir", def.RootDir)
	v.SetDefault("database_url", def.DatabaseURL)
	v.SetDefault("confirm_cascades", def.ConfirmCascades)
	v.SetDefault("quick_mark", def.QuickMark)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvPrefix("pkgmark")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads the configuration from the default location. Environment
// variables prefixed with PKGMARK_ override the file.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Save saves the configuration to the default location
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnsureDirectories creates all necessary directories if they don't exist
func (c *Config) EnsureDirectories() error {
	dirs := c.GetDirectories()
	for _, dir := range []string{
		dirs.Root,
		dirs.Config,
		dirs.DB,
		dirs.Logs,
		dirs.Markings,
		dirs.Receipts,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Keys returns the settable keys in alphabetical order
func Keys() []string {
	keys := []string{"root_dir", "database_url", "confirm_cascades", "quick_mark", "log_level", "log_format"}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key as text
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "root_dir":
		return c.RootDir, nil
	case "database_url":
		return c.DatabaseURL, nil
	case "confirm_cascades":
		return strconv.FormatBool(c.ConfirmCascades), nil
	case "quick_mark":
		return strconv.FormatBool(c.QuickMark), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}

// Set validates value and assigns it to key. It does not save.
func (c *Config) Set(key, value string) error {
	switch key {
	case "root_dir":
		dir, err := expandDir(value)
		if err != nil {
			return err
		}
		c.RootDir = dir
	case "database_url":
		c.DatabaseURL = strings.TrimSpace(value)
	case "confirm_cascades", "quick_mark":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if key == "quick_mark" {
			c.QuickMark = b
		} else {
			c.ConfirmCascades = b
		}
	case "log_level":
		if _, err := zerolog.ParseLevel(strings.ToLower(value)); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		c.LogLevel = strings.ToLower(value)
	case "log_format":
		format := strings.ToLower(strings.TrimSpace(value))
		if format != "console" && format != "json" {
			return fmt.Errorf("invalid value for %s: %q, want console or json", key, value)
		}
		c.LogFormat = format
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func expandDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", errors.New("root directory must not be empty")
	}

	// Expand ~ to home directory
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath, nil
}
