// Package config handles the citekit configuration file and environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Config represents configuration stored in ~/.config/citekit/config.yml.
type Config struct {
	RegistryPath       string   `yaml:"registry_path,omitempty"` // Curated table overriding the embedded one
	DBPath             string   `yaml:"db_path,omitempty"`       // SQLite corpus index
	BatchSize          int      `yaml:"batch_size,omitempty"`    // Spans parsed per batch when indexing
	LogLevel           string   `yaml:"log_level,omitempty"`
	LogFormat          string   `yaml:"log_format,omitempty"` // json or console
	PartialDOIPrefixes []string `yaml:"partial_doi_prefixes,omitempty"`
}

// Environment variables that override the config file.
const (
	EnvRegistry  = "CITEKIT_REGISTRY"
	EnvDB        = "CITEKIT_DB"
	EnvLogLevel  = "CITEKIT_LOG_LEVEL"
	EnvBatchSize = "CITEKIT_BATCH_SIZE"
)

const (
	DefaultBatchSize = 5000
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DBFile           = "corpus.db"
)

// ValidLogFormats lists the supported log_format values.
var ValidLogFormats = []string{"json", "console"}

// ErrInvalidConfig is returned when a config value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
}

// applyEnv overrides fields from the environment. Empty variables are ignored.
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvRegistry); v != "" {
		c.RegistryPath = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q is not an integer", EnvBatchSize, v)
		}
		c.BatchSize = n
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.BatchSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "batch_size must not be negative, got %d", c.BatchSize)
	}
	if c.LogFormat != "" && !validLogFormat(c.LogFormat) {
		return errors.WithHintf(
			errors.Wrapf(ErrInvalidConfig, "log_format %q", c.LogFormat),
			"valid formats: %v", ValidLogFormats)
	}
	return nil
}

func validLogFormat(f string) bool {
	for _, valid := range ValidLogFormats {
		if f == valid {
			return true
		}
	}
	return false
}

// DefaultDBPath returns the corpus index location under the user cache dir.
// Falls back to the working directory if no cache dir is available.
func DefaultDBPath() string {
	cacheHome, err := os.UserCacheDir()
	if err != nil {
		return DBFile
	}
	return filepath.Join(cacheHome, Dir, DBFile)
}

// ExpandTilde expands a leading ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
