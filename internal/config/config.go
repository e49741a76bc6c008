// Package config loads and validates the saintagent configuration.
// Config lives in a YAML file under the workspace; environment variables
// override the secrets so they never need to be written to disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all saintagent configuration.
type Config struct {
	// Workspace is the root directory for profiles, logs and the database.
	Workspace string `yaml:"workspace"`

	// Model configures the conversational model.
	Model ModelConfig `yaml:"model"`

	// Browser configures session lifecycle and the Chromium launch.
	Browser BrowserConfig `yaml:"browser"`

	// Portal configures the target portal and its timing quirks.
	Portal PortalConfig `yaml:"portal"`

	// Scheduler configures the unattended automation tick.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Notify configures the notification collaborator endpoint.
	Notify NotifyConfig `yaml:"notify"`

	// Logging controls the category file logger.
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig configures the conversational model client.
type ModelConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Timeout   string `yaml:"timeout"`
	MaxRounds int    `yaml:"max_rounds"` // model<->tool round trips per inbound message
}

// BrowserConfig configures browser session management.
type BrowserConfig struct {
	Headless          bool   `yaml:"headless"`
	ProfilesDir       string `yaml:"profiles_dir"` // one persistent profile per session key
	SessionTimeout    string `yaml:"session_timeout"`
	SweepInterval     string `yaml:"sweep_interval"`
	CloseTimeout      string `yaml:"close_timeout"` // per-session bound during eviction
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// PortalConfig configures the portal entry point and interaction timing.
type PortalConfig struct {
	EntryURL string `yaml:"entry_url"`
	// SettleInterval is how long the portal's client-side script keeps
	// mutating the DOM after the load event. Tuned against the target
	// portal, not a contract; keep it configurable.
	SettleInterval string `yaml:"settle_interval"`
	FrameTimeout   string `yaml:"frame_timeout"`
	ActionTimeout  string `yaml:"action_timeout"`
}

// SchedulerConfig configures the unattended tick.
type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TickInterval string `yaml:"tick_interval"`
	// CafeteriaCode is the default dining hall for menu tasks without an
	// explicit parameter.
	CafeteriaCode int `yaml:"cafeteria_code"`
}

// NotifyConfig configures the notification delivery collaborator.
type NotifyConfig struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// LoggingConfig controls the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	Level      string          `yaml:"level" json:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Workspace: ".saintagent",
		Model: ModelConfig{
			Model:     "gemini-2.0-flash",
			Timeout:   "120s",
			MaxRounds: 10,
		},
		Browser: BrowserConfig{
			Headless:          true,
			ProfilesDir:       "profiles",
			SessionTimeout:    "30m",
			SweepInterval:     "5m",
			CloseTimeout:      "10s",
			NavigationTimeout: "30s",
		},
		Portal: PortalConfig{
			EntryURL:       "https://saint.ssu.ac.kr/irj/portal",
			SettleInterval: "2s",
			FrameTimeout:   "8s",
			ActionTimeout:  "4s",
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			TickInterval:  "1m",
			CafeteriaCode: 2,
		},
		Notify: NotifyConfig{
			Timeout: "10s",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads config from path, falling back to defaults for missing fields.
// A missing file is not an error; defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies environment variable overrides.
// Env vars always win over file values.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Model.APIKey = key
	}
	if model := os.Getenv("SAINT_MODEL"); model != "" {
		c.Model.Model = model
	}
	if ws := os.Getenv("SAINT_WORKSPACE"); ws != "" {
		c.Workspace = ws
	}
	if url := os.Getenv("SAINT_PORTAL_URL"); url != "" {
		c.Portal.EntryURL = url
	}
	if ep := os.Getenv("SAINT_NOTIFY_ENDPOINT"); ep != "" {
		c.Notify.Endpoint = ep
	}
}

// DatabasePath returns the SQLite database location under the workspace.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Workspace, "saintagent.db")
}

// ProfilesPath returns the browser profile root under the workspace.
func (c *Config) ProfilesPath() string {
	return filepath.Join(c.Workspace, c.Browser.ProfilesDir)
}

// GetModelTimeout parses the model timeout with a fallback.
func (c *Config) GetModelTimeout() time.Duration {
	return parseDuration(c.Model.Timeout, 120*time.Second)
}

// GetSessionTimeout parses the inactivity window with a fallback.
func (c *Config) GetSessionTimeout() time.Duration {
	return parseDuration(c.Browser.SessionTimeout, 30*time.Minute)
}

// GetSweepInterval parses the eviction sweep interval with a fallback.
func (c *Config) GetSweepInterval() time.Duration {
	return parseDuration(c.Browser.SweepInterval, 5*time.Minute)
}

// GetCloseTimeout parses the per-session close bound with a fallback.
func (c *Config) GetCloseTimeout() time.Duration {
	return parseDuration(c.Browser.CloseTimeout, 10*time.Second)
}

// GetNavigationTimeout parses the navigation bound with a fallback.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetSettleInterval parses the post-navigation settle interval.
func (c *Config) GetSettleInterval() time.Duration {
	return parseDuration(c.Portal.SettleInterval, 2*time.Second)
}

// GetFrameTimeout parses the frame load bound with a fallback.
func (c *Config) GetFrameTimeout() time.Duration {
	return parseDuration(c.Portal.FrameTimeout, 8*time.Second)
}

// GetActionTimeout parses the click/type bound with a fallback.
func (c *Config) GetActionTimeout() time.Duration {
	return parseDuration(c.Portal.ActionTimeout, 4*time.Second)
}

// GetTickInterval parses the scheduler tick interval with a fallback.
func (c *Config) GetTickInterval() time.Duration {
	return parseDuration(c.Scheduler.TickInterval, time.Minute)
}

// GetNotifyTimeout parses the notification request bound with a fallback.
func (c *Config) GetNotifyTimeout() time.Duration {
	return parseDuration(c.Notify.Timeout, 10*time.Second)
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}
	if c.Portal.EntryURL == "" {
		return fmt.Errorf("portal entry_url is required")
	}
	if c.Model.MaxRounds <= 0 {
		return fmt.Errorf("model max_rounds must be positive, got %d", c.Model.MaxRounds)
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
