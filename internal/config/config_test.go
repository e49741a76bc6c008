package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://saint.ssu.ac.kr/irj/portal", cfg.Portal.EntryURL)
	assert.Equal(t, 30*time.Minute, cfg.GetSessionTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetSettleInterval())
	assert.Equal(t, time.Minute, cfg.GetTickInterval())
	assert.Equal(t, 10, cfg.Model.MaxRounds)
	assert.True(t, cfg.Browser.Headless)
	require.NoError(t, cfg.Validate())
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Workspace = "/tmp/ws"
	cfg.Portal.SettleInterval = "3s"
	cfg.Scheduler.CafeteriaCode = 1
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ws", got.Workspace)
	assert.Equal(t, 3*time.Second, got.GetSettleInterval())
	assert.Equal(t, 1, got.Scheduler.CafeteriaCode)
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("SAINT_WORKSPACE", filepath.Join(t.TempDir(), "ws"))

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Model.APIKey)
	assert.Equal(t, os.Getenv("SAINT_WORKSPACE"), cfg.Workspace)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Portal.EntryURL = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Model.MaxRounds = 0
	assert.Error(t, cfg.Validate())
}

func TestParseDurationFallsBack(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, parseDuration("garbage", 5*time.Second))
	assert.Equal(t, 90*time.Second, parseDuration("90s", 5*time.Second))
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = "/data/saint"
	assert.Equal(t, filepath.Join("/data/saint", "saintagent.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/data/saint", "profiles"), cfg.ProfilesPath())
}
