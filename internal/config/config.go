// Package config loads simshell configuration from YAML, a .env file and the
// environment. Later sources win: defaults < config file < .env < environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/oracle"
)

// Environment variables understood by ApplyEnv.
const (
	EnvUser          = "SIMSHELL_USER"
	EnvDB            = "SIMSHELL_DB"
	EnvCategories    = "SIMSHELL_CATEGORIES"
	EnvOverrideAll   = "SIMSHELL_OVERRIDE_ALL"
	EnvLogLevel      = "SIMSHELL_LOG_LEVEL"
	EnvOracle        = "SIMSHELL_ORACLE"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIModel   = "OPENAI_MODEL"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
)

// Config is the full simshell configuration.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Store     StoreConfig     `yaml:"store"`
	Oracle    oracle.Config   `yaml:"oracle"`
	Sim       SimConfig       `yaml:"sim"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// SessionConfig holds the initial session state.
type SessionConfig struct {
	UserID           string   `yaml:"user_id"`
	ActiveCategories []string `yaml:"active_categories"`
	// OverrideAll bypasses every permission check.
	OverrideAll bool `yaml:"override_all"`
}

// StoreConfig locates the backing store.
type StoreConfig struct {
	// Path of the SQLite file; empty keeps the store in memory.
	Path string `yaml:"path"`
	// DataDir receives persisted snapshots.
	DataDir string `yaml:"data_dir"`
}

// SimConfig bounds the simulated latency.
type SimConfig struct {
	MinDelayMS int `yaml:"min_delay_ms"`
	MaxDelayMS int `yaml:"max_delay_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level string `yaml:"level"`
	// File enables rotated file output when set.
	File string `yaml:"file"`
	// Format is console or json.
	Format string `yaml:"format"`
}

// BootstrapConfig seeds roles on "init db".
type BootstrapConfig struct {
	AdminUsers []string `yaml:"admin_users"`
}

// Admins returns the users granted the admin role on "init db". With no
// admin_users configured the session user is the admin.
func (c *Config) Admins() []string {
	if len(c.Bootstrap.AdminUsers) > 0 {
		return c.Bootstrap.AdminUsers
	}
	if c.Session.UserID == "" {
		return nil
	}
	return []string{c.Session.UserID}
}

// Dir returns the simshell home directory, ~/.simshell.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".simshell"
	}
	return filepath.Join(home, ".simshell")
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	user := os.Getenv("USER")
	if user == "" {
		user = "local"
	}
	cats := make([]string, 0, len(models.AllCategories()))
	for _, c := range models.AllCategories() {
		cats = append(cats, c.String())
	}
	return &Config{
		Session: SessionConfig{
			UserID:           user,
			ActiveCategories: cats,
		},
		Store: StoreConfig{
			DataDir: filepath.Join(Dir(), "data"),
		},
		Oracle: *oracle.DefaultConfig(),
		Sim: SimConfig{
			MinDelayMS: 100,
			MaxDelayMS: 1500,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:7475",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error. The .env file in the working directory and the environment are
// applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ApplyEnv(EnvLookup(".env"))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// EnvLookup returns a lookup over the process environment falling back to
// the values in dotenvPath. Process variables win over the file.
func EnvLookup(dotenvPath string) func(string) (string, bool) {
	fileVals, err := godotenv.Read(dotenvPath)
	if err != nil {
		fileVals = map[string]string{}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvUser, &c.Session.UserID)
	str(EnvDB, &c.Store.Path)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvOracle, &c.Oracle.Provider)
	str(EnvOpenAIKey, &c.Oracle.APIKey)
	str(EnvOpenAIModel, &c.Oracle.Model)
	str(EnvOpenAIBaseURL, &c.Oracle.BaseURL)

	if v, ok := lookup(EnvCategories); ok && strings.TrimSpace(v) != "" {
		var cats []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				cats = append(cats, p)
			}
		}
		c.Session.ActiveCategories = cats
	}
	if v, ok := lookup(EnvOverrideAll); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Session.OverrideAll = b
		}
	}
}

// Categories parses the configured active categories.
func (c *Config) Categories() ([]models.Category, error) {
	return models.ParseCategories(strings.Join(c.Session.ActiveCategories, ","))
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Session.UserID) == "" {
		return fmt.Errorf("session.user_id is required")
	}
	if _, err := c.Categories(); err != nil {
		return fmt.Errorf("session.active_categories: %w", err)
	}
	if c.Sim.MinDelayMS < 0 || c.Sim.MaxDelayMS < c.Sim.MinDelayMS {
		return fmt.Errorf("sim delays must satisfy 0 <= min_delay_ms <= max_delay_ms")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be: console or json", c.Log.Format)
	}
	return c.Oracle.Validate()
}
