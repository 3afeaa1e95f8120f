// Package config loads the parkadmin client configuration from a TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

// Version is the configuration file format version understood by this build.
const Version = "0.1.0"

// SupportedAPI is the semver constraint the REST API version must satisfy.
const SupportedAPI = "~1.0"

// DefaultConfigFile is the name of the config file inside the user config directory.
const DefaultConfigFile = "config.toml"

// Environment overrides.
const (
	EnvServerURL         = "PARKADMIN_SERVER_URL"
	EnvLogLevel          = "PARKADMIN_LOG_LEVEL"
	EnvSessionPassphrase = "PARKADMIN_SESSION_PASSPHRASE"
)

// ServerConfig holds the remote API connection settings
type ServerConfig struct {
	URL        string  `toml:"url"`         // REST origin, e.g. https://server.uparkt.ru
	APIVersion string  `toml:"api_version"` // REST API version, rendered as /api/v<major>.<minor>
	Timeout    string  `toml:"timeout"`     // Per-request timeout
	RateLimit  float64 `toml:"rate_limit"`  // Private client requests per second
	Burst      int     `toml:"burst"`       // Private client burst size
}

// GetTimeoutOrDefault returns the request timeout, falling back to 30s
func (s *ServerConfig) GetTimeoutOrDefault() time.Duration {
	d, err := ParseDuration(s.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SessionConfig holds session-related configuration
type SessionConfig struct {
	Path               string `toml:"path"`                // Session slot file
	Passphrase         string `toml:"-"`                   // Seals the token at rest when set
	RevalidateInterval string `toml:"revalidate_interval"` // Period of the token refresh timer
	RequiredRole       string `toml:"required_role"`       // Role a staff member must hold
	SendAnonymous      bool   `toml:"send_anonymous"`      // Send private requests without a token instead of failing
}

// GetRevalidateIntervalOrDefault returns the refresh period, falling back to 14 minutes
func (s *SessionConfig) GetRevalidateIntervalOrDefault() time.Duration {
	d, err := ParseDuration(s.RevalidateInterval)
	if err != nil {
		return 14 * time.Minute
	}
	return d
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	StaleTime string `toml:"stale_time"` // How long fetched data counts as fresh
	Retries   int    `toml:"retries"`    // Retries after the first failed fetch
}

// GetStaleTimeOrDefault returns the freshness window, falling back to 15 minutes
func (c *CacheConfig) GetStaleTimeOrDefault() time.Duration {
	d, err := ParseDuration(c.StaleTime)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `toml:"level"`
}

// ConfigParam holds all configuration parameters of the client
type ConfigParam struct {
	FormatVersion string        `toml:"format_version"`
	Server        ServerConfig  `toml:"server"`
	Session       SessionConfig `toml:"session"`
	Cache         CacheConfig   `toml:"cache"`
	Log           LogConfig     `toml:"log"`
}

// Default returns a configuration with every value set to its default.
func Default() *ConfigParam {
	return &ConfigParam{
		FormatVersion: Version,
		Server: ServerConfig{
			URL:        "https://server.uparkt.ru",
			APIVersion: "1.0",
			Timeout:    "30s",
			RateLimit:  10,
			Burst:      20,
		},
		Session: SessionConfig{
			RevalidateInterval: "14m",
			RequiredRole:       "admin",
		},
		Cache: CacheConfig{
			StaleTime: "15m",
			Retries:   2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// GetDefaultConfigPath returns the default path for the config file
func GetDefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "parkadmin", DefaultConfigFile), nil
}

// LoadConfig reads filename on top of the defaults and applies environment
// overrides. An empty filename selects the default location; a missing
// default file is not an error.
func LoadConfig(filename string) (*ConfigParam, error) {
	// .env is optional
	_ = godotenv.Load()

	explicit := filename != ""
	if !explicit {
		var err error
		filename, err = GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()
	content, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if _, err := toml.Decode(string(content), cfg); err != nil {
			return nil, apperrors.ErrInvalidConfig.MsgErr("error parsing config file", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, apperrors.ErrInvalidConfig.MsgErr("error reading config file", err)
	}

	applyEnv(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *ConfigParam) {
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvSessionPassphrase); v != "" {
		cfg.Session.Passphrase = v
	}
}

// WriteConfig writes cfg to file, creating the directory if needed
func (cfg *ConfigParam) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}
	return nil
}

// ValidateConfig checks that all configuration values are present and valid
func ValidateConfig(cfg *ConfigParam) error {
	if cfg.FormatVersion != Version {
		return apperrors.ErrInvalidConfig.Msg("unsupported config file format version: " + cfg.FormatVersion)
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateSessionConfig(cfg); err != nil {
		return err
	}
	if err := validateCacheConfig(cfg); err != nil {
		return err
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	cfg.Server.URL = MorphServer(cfg.Server.URL)
	u, err := url.Parse(cfg.Server.URL)
	if err != nil || u.Host == "" {
		return apperrors.ErrInvalidConfig.Msg("server.url must be an absolute http(s) URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperrors.ErrInvalidConfig.Msg("server.url must start with http:// or https://")
	}
	v, err := semver.NewVersion(cfg.Server.APIVersion)
	if err != nil {
		return apperrors.ErrInvalidConfig.MsgErr("invalid server.api_version", err)
	}
	c, _ := semver.NewConstraint(SupportedAPI)
	if !c.Check(v) {
		return apperrors.ErrInvalidConfig.Msg(fmt.Sprintf("server.api_version %s does not satisfy %s", v, SupportedAPI))
	}
	if _, err := ParseDuration(cfg.Server.Timeout); err != nil {
		return apperrors.ErrInvalidConfig.MsgErr("invalid server.timeout", err)
	}
	if cfg.Server.RateLimit <= 0 || cfg.Server.Burst <= 0 {
		return apperrors.ErrInvalidConfig.Msg("server.rate_limit and server.burst must be positive")
	}
	return nil
}

func validateSessionConfig(cfg *ConfigParam) error {
	d, err := ParseDuration(cfg.Session.RevalidateInterval)
	if err != nil {
		return apperrors.ErrInvalidConfig.MsgErr("invalid session.revalidate_interval", err)
	}
	if d <= 0 {
		return apperrors.ErrInvalidConfig.Msg("session.revalidate_interval must be positive")
	}
	if cfg.Session.Path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return apperrors.ErrInvalidConfig.MsgErr("error getting user config directory", err)
		}
		cfg.Session.Path = filepath.Join(dir, "parkadmin", "session.yaml")
	}
	return nil
}

func validateCacheConfig(cfg *ConfigParam) error {
	if _, err := ParseDuration(cfg.Cache.StaleTime); err != nil {
		return apperrors.ErrInvalidConfig.MsgErr("invalid cache.stale_time", err)
	}
	if cfg.Cache.Retries < 0 {
		return apperrors.ErrInvalidConfig.Msg("cache.retries must not be negative")
	}
	return nil
}

// APIPrefix renders the REST path prefix for the configured API version.
func (cfg *ConfigParam) APIPrefix() string {
	v, err := semver.NewVersion(cfg.Server.APIVersion)
	if err != nil {
		return "/api/v1.0"
	}
	return fmt.Sprintf("/api/v%d.%d", v.Major(), v.Minor())
}

// WSOrigin derives the websocket origin from the REST origin.
func (cfg *ConfigParam) WSOrigin() string {
	u, err := url.Parse(cfg.Server.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = ""
	return strings.TrimRight(u.String(), "/")
}

// MorphServer trims trailing slashes and adds https:// when no scheme is given
func MorphServer(server string) string {
	if server == "" {
		return server
	}
	server = strings.TrimRight(server, "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}
	return server
}

// ParseDuration parses a duration string in the format "<number><unit>" where unit can be:
// - y: years
// - d: days
// - h: hours
// - m: minutes
// - s: seconds
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}

	var duration time.Duration
	switch unit {
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "h":
		duration = time.Duration(value) * time.Hour
	case "m":
		duration = time.Duration(value) * time.Minute
	case "s":
		duration = time.Duration(value) * time.Second
	case "y":
		duration = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}
