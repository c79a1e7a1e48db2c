// Package userconfig provides the optional settings file for embeddb.
// Settings are stored in <artifacts home>/config.toml and can be modified
// via the `embeddb config` command. Environment variables take precedence
// over the file, which takes precedence over built-in defaults.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tsukumogami/embeddb/internal/config"
)

// DefaultToolsVersion is the database tools release used when neither the
// caller nor the settings file picks one.
const DefaultToolsVersion = "100.5.1"

// Config represents user-configurable settings.
type Config struct {
	// DownloadOrigin is the prefix package URL paths are resolved against.
	DownloadOrigin string `toml:"download_origin,omitempty"`

	// ToolsVersion selects the database tools release for tool commands.
	ToolsVersion string `toml:"tools_version,omitempty"`

	// VerifySignatures enables detached signature checks on downloads.
	VerifySignatures bool `toml:"verify_signatures"`

	// SigningKeyFile is an armored PGP public key used for verification.
	SigningKeyFile string `toml:"signing_key_file,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ToolsVersion: DefaultToolsVersion,
	}
}

// Load reads the settings file of the default layout.
// Returns default values if the file doesn't exist.
func Load() (*Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(cfg.ConfigFile)
}

// LoadFrom reads settings from a specific file path.
// Returns an error only for file parsing issues, not missing files.
func LoadFrom(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if userCfg.ToolsVersion == "" {
		userCfg.ToolsVersion = DefaultToolsVersion
	}

	return userCfg, nil
}

// SaveTo writes the settings to path, creating the parent directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Origin returns the effective download origin: EMBEDDB_DOWNLOAD_ORIGIN,
// then the file setting, then the built-in default.
func (c *Config) Origin() string {
	if os.Getenv(config.EnvDownloadOrigin) == "" && c.DownloadOrigin != "" {
		return strings.TrimRight(c.DownloadOrigin, "/")
	}
	return config.GetDownloadOrigin()
}

// Get returns the value of a config key as a string.
// Returns empty string and false if the key doesn't exist.
func (c *Config) Get(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "download_origin":
		return c.DownloadOrigin, true
	case "tools_version":
		return c.ToolsVersion, true
	case "verify_signatures":
		return strconv.FormatBool(c.VerifySignatures), true
	case "signing_key_file":
		return c.SigningKeyFile, true
	default:
		return "", false
	}
}

// Set updates a config value from a string.
// Returns an error if the key doesn't exist or the value is invalid.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "download_origin":
		c.DownloadOrigin = value
	case "tools_version":
		c.ToolsVersion = value
	case "verify_signatures":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for verify_signatures: must be true or false")
		}
		c.VerifySignatures = b
	case "signing_key_file":
		c.SigningKeyFile = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// AvailableKeys returns a list of all configurable keys with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"download_origin":   "Prefix that archive paths are resolved against",
		"tools_version":     "Database tools release used by mongodump/mongorestore/mongoimport",
		"verify_signatures": "Verify detached PGP signatures of downloaded archives (true/false)",
		"signing_key_file":  "Armored PGP public key used for signature verification",
	}
}
