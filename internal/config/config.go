// Package config loads the service configuration file, JSON or YAML.
// Every field is optional; the Get* methods supply the defaults, so partial
// files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/seamprofile/internal/profilefs"
	"github.com/banshee-data/seamprofile/internal/profilestore"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Defaults for fields left out of the file.
const (
	DefaultDBPath        = "/var/lib/rklaser/seam-profiles.db"
	DefaultListen        = "127.0.0.1:8090"
	DefaultRevisionLimit = 20
)

// maxFileSize bounds the configuration file.
const maxFileSize = 1 * 1024 * 1024

// Config is the root configuration.
type Config struct {
	Backend          *string `json:"backend,omitempty" yaml:"backend,omitempty"` // "json" or "sqlite"
	ProfileDir       *string `json:"profile_dir,omitempty" yaml:"profile_dir,omitempty"`
	DBPath           *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Listen           *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	DefaultProfileID *int    `json:"default_profile_id,omitempty" yaml:"default_profile_id,omitempty"`
	MaxProfiles      *int    `json:"max_profiles,omitempty" yaml:"max_profiles,omitempty"`
	CreateMissing    *bool   `json:"create_missing,omitempty" yaml:"create_missing,omitempty"`
	LogLevel         *string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	AutosaveInterval *string `json:"autosave_interval,omitempty" yaml:"autosave_interval,omitempty"` // duration string like "30s"; "0" disables
	RevisionLimit    *int    `json:"revision_limit,omitempty" yaml:"revision_limit,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		Backend:          ptrString(BackendJSON),
		ProfileDir:       ptrString(profilefs.DefaultDir),
		DBPath:           ptrString(DefaultDBPath),
		Listen:           ptrString(DefaultListen),
		DefaultProfileID: ptrInt(0),
		MaxProfiles:      ptrInt(profilestore.MaxProfiles),
		CreateMissing:    ptrBool(true),
		LogLevel:         ptrString("info"),
		AutosaveInterval: ptrString("0"),
		RevisionLimit:    ptrInt(DefaultRevisionLimit),
	}
}

// LoadConfig loads a Config from a JSON or YAML file, chosen by the
// .json, .yaml or .yml extension. The file must be at most 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	var unmarshal func([]byte, any) error
	switch ext := filepath.Ext(cleanPath); ext {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Backend != nil {
		switch *c.Backend {
		case BackendJSON, BackendSQLite:
		default:
			return fmt.Errorf("backend must be %q or %q, got %q", BackendJSON, BackendSQLite, *c.Backend)
		}
	}

	if c.MaxProfiles != nil {
		if *c.MaxProfiles < 1 || *c.MaxProfiles > profilestore.MaxProfiles {
			return fmt.Errorf("max_profiles must be between 1 and %d, got %d", profilestore.MaxProfiles, *c.MaxProfiles)
		}
	}

	if c.DefaultProfileID != nil {
		if *c.DefaultProfileID < 0 || *c.DefaultProfileID >= c.GetMaxProfiles() {
			return fmt.Errorf("default_profile_id must be in [0,%d), got %d", c.GetMaxProfiles(), *c.DefaultProfileID)
		}
	}

	if c.LogLevel != nil && *c.LogLevel != "" {
		if _, err := log.ParseLevel(*c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level '%s': %w", *c.LogLevel, err)
		}
	}

	if c.AutosaveInterval != nil && *c.AutosaveInterval != "" {
		d, err := time.ParseDuration(*c.AutosaveInterval)
		if err != nil {
			return fmt.Errorf("invalid autosave_interval '%s': %w", *c.AutosaveInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("autosave_interval must be non-negative, got %s", d)
		}
	}

	if c.RevisionLimit != nil && *c.RevisionLimit < 0 {
		return fmt.Errorf("revision_limit must be non-negative, got %d", *c.RevisionLimit)
	}
	return nil
}

// GetBackend returns the backend or "json".
func (c *Config) GetBackend() string {
	if c.Backend == nil || *c.Backend == "" {
		return BackendJSON
	}
	return *c.Backend
}

// GetProfileDir returns the profile directory or profilefs.DefaultDir.
func (c *Config) GetProfileDir() string {
	if c.ProfileDir == nil || *c.ProfileDir == "" {
		return profilefs.DefaultDir
	}
	return *c.ProfileDir
}

// GetDBPath returns the SQLite file or DefaultDBPath.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetListen returns the HTTP listen address or DefaultListen.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetDefaultProfileID returns the profile made current at startup.
func (c *Config) GetDefaultProfileID() int32 {
	if c.DefaultProfileID == nil {
		return 0
	}
	return int32(*c.DefaultProfileID)
}

// GetMaxProfiles returns the number of profile ids in use.
func (c *Config) GetMaxProfiles() int {
	if c.MaxProfiles == nil {
		return profilestore.MaxProfiles
	}
	return *c.MaxProfiles
}

// GetCreateMissing reports whether missing profiles are written as
// defaults at startup.
func (c *Config) GetCreateMissing() bool {
	if c.CreateMissing == nil {
		return true
	}
	return *c.CreateMissing
}

// GetLogLevel returns the log level name or "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}

// GetAutosaveInterval returns how often loaded profiles are saved; zero
// means never.
func (c *Config) GetAutosaveInterval() time.Duration {
	if c.AutosaveInterval == nil || *c.AutosaveInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.AutosaveInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetRevisionLimit returns how many SQLite revisions are kept per profile.
func (c *Config) GetRevisionLimit() int {
	if c.RevisionLimit == nil {
		return DefaultRevisionLimit
	}
	return *c.RevisionLimit
}
