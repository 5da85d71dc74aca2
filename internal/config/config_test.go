package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/oracle"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// chdir moves into dir so Load does not pick up a stray .env file.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cats, err := cfg.Categories()
	require.NoError(t, err)
	assert.Equal(t, models.AllCategories(), cats)
	assert.Equal(t, oracle.ProviderKeyword, cfg.Oracle.Provider)
	assert.Empty(t, cfg.Store.Path)
}

func TestAdminsDefaultToSessionUser(t *testing.T) {
	cfg := Default()
	cfg.Session.UserID = "dana"
	assert.Equal(t, []string{"dana"}, cfg.Admins())

	cfg.ApplyEnv(mapLookup(map[string]string{"SIMSHELL_USER": "erin"}))
	assert.Equal(t, []string{"erin"}, cfg.Admins())

	cfg.Bootstrap.AdminUsers = []string{"carol", "dave"}
	assert.Equal(t, []string{"carol", "dave"}, cfg.Admins())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Sim.MinDelayMS)
	assert.Equal(t, 1500, cfg.Sim.MaxDelayMS)
}

func TestLoadOverlaysFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
session:
  user_id: alice
  active_categories: [internal, sql]
sim:
  min_delay_ms: 0
  max_delay_ms: 0
bootstrap:
  admin_users: [alice]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Session.UserID)
	assert.Equal(t, []string{"internal", "sql"}, cfg.Session.ActiveCategories)
	assert.Equal(t, []string{"alice"}, cfg.Bootstrap.AdminUsers)
	assert.Equal(t, 0, cfg.Sim.MaxDelayMS)
	// untouched sections keep their defaults
	assert.Equal(t, "127.0.0.1:7475", cfg.Server.Listen)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()

	garbled := filepath.Join(dir, "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("session: [unclosed"), 0o600))
	_, err := Load(garbled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")

	badCat := filepath.Join(dir, "badcat.yaml")
	require.NoError(t, os.WriteFile(badCat, []byte("session:\n  active_categories: [cobol]\n"), 0o600))
	_, err = Load(badCat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(mapLookup(map[string]string{
		EnvUser:        "bob",
		EnvDB:          "/tmp/sim.db",
		EnvCategories:  " unix , windows ,",
		EnvOverrideAll: "true",
		EnvOracle:      "openai",
		EnvOpenAIKey:   "sk-test",
		EnvOpenAIModel: "gpt-test",
		EnvLogLevel:    "debug",
	}))

	assert.Equal(t, "bob", cfg.Session.UserID)
	assert.Equal(t, "/tmp/sim.db", cfg.Store.Path)
	assert.Equal(t, []string{"unix", "windows"}, cfg.Session.ActiveCategories)
	assert.True(t, cfg.Session.OverrideAll)
	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, "sk-test", cfg.Oracle.APIKey)
	assert.Equal(t, "gpt-test", cfg.Oracle.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvIgnoresBlankAndBadValues(t *testing.T) {
	cfg := Default()
	user := cfg.Session.UserID
	cfg.ApplyEnv(mapLookup(map[string]string{
		EnvUser:        "   ",
		EnvOverrideAll: "maybe",
	}))
	assert.Equal(t, user, cfg.Session.UserID)
	assert.False(t, cfg.Session.OverrideAll)
}

func TestEnvLookupReadsDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SIMSHELL_TEST_ONLY_A=fromfile\nSIMSHELL_TEST_ONLY_B=fromfile\n"), 0o600))
	t.Setenv("SIMSHELL_TEST_ONLY_B", "fromenv")

	lookup := EnvLookup(path)
	v, ok := lookup("SIMSHELL_TEST_ONLY_A")
	assert.True(t, ok)
	assert.Equal(t, "fromfile", v)

	v, ok = lookup("SIMSHELL_TEST_ONLY_B")
	assert.True(t, ok)
	assert.Equal(t, "fromenv", v)

	_, ok = lookup("SIMSHELL_TEST_ONLY_C")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty user", func(c *Config) { c.Session.UserID = "" }, "user_id"},
		{"bad category", func(c *Config) { c.Session.ActiveCategories = []string{"fortran"} }, "active_categories"},
		{"inverted delays", func(c *Config) { c.Sim.MinDelayMS = 10; c.Sim.MaxDelayMS = 5 }, "sim delays"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"bad oracle", func(c *Config) { c.Oracle.Provider = "crystal-ball" }, "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Session.UserID = "carol"
	cfg.Bootstrap.AdminUsers = []string{"carol"}

	require.NoError(t, Save(path, cfg))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "carol", loaded.Session.UserID)
	assert.Equal(t, []string{"carol"}, loaded.Bootstrap.AdminUsers)

	assert.Error(t, Save(path, nil))
}
