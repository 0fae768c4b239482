package bot

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the full bot configuration. Values come from defaults, overlaid
// by config.yaml, overlaid by WABOT_* environment variables (a .env file is
// loaded by the CLI before config resolution).
type Config struct {
	// Name is the bot's display name used in the system prompt.
	Name string `yaml:"name"`

	// Model is the chat completion model.
	Model string `yaml:"model"`

	// Instructions is prepended to the system prompt for AI chat.
	Instructions string `yaml:"instructions"`

	API         APIConfig         `yaml:"api"`
	Bot         BotConfig         `yaml:"bot"`
	Memory      MemoryConfig      `yaml:"memory"`
	Media       MediaConfig       `yaml:"media"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Health      HealthConfig      `yaml:"health"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// APIConfig points at an OpenAI-compatible endpoint.
type APIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	VisionModel string `yaml:"vision_model"`
}

// BotConfig holds the conversation-level knobs.
type BotConfig struct {
	// CommandPrefix triggers the main menu (e.g. "!").
	CommandPrefix string `yaml:"command_prefix"`

	// TimeoutMinutes is the menu inactivity timeout.
	TimeoutMinutes int `yaml:"timeout_minutes"`

	// Owner is the conversation id allowed to run admin commands and the
	// target of the daily summary.
	Owner string `yaml:"owner"`

	// DataDir holds the session file and downloaded media.
	DataDir string `yaml:"data_dir"`

	// AuthDir holds the WhatsApp credential store.
	AuthDir string `yaml:"auth_dir"`
}

// MemoryConfig bounds the in-process conversation memory.
type MemoryConfig struct {
	// Cap is the max turns kept per conversation (pairs count double).
	Cap int `yaml:"cap"`

	// SweepThreshold is the distinct-conversation count above which the
	// hourly sweep purges the whole window.
	SweepThreshold int `yaml:"sweep_threshold"`

	// SessionThreshold is the session-map size above which the sweep
	// clears all durable sessions. Zero disables the session purge.
	SessionThreshold int `yaml:"session_threshold"`
}

// MediaConfig controls the vision branch.
type MediaConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxBytes caps the attachment size passed to the vision model.
	MaxBytes int64 `yaml:"max_bytes"`

	// DefaultPrompt is used when an attachment has no caption.
	DefaultPrompt string `yaml:"default_prompt"`
}

// MaintenanceConfig holds the cron specs for the periodic actions.
type MaintenanceConfig struct {
	Enabled bool `yaml:"enabled"`

	// SummarySpec schedules the daily activity summary.
	SummarySpec string `yaml:"summary_spec"`

	// SweepSpec schedules the memory sweep.
	SweepSpec string `yaml:"sweep_spec"`
}

// HealthConfig controls the read-only status endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// DefaultConfig returns the built-in defaults, matching the reference
// policy: "!" prefix, 10-minute timeout, 10-turn memory, 50-conversation
// sweep threshold.
func DefaultConfig() *Config {
	return &Config{
		Name:  "WaBot",
		Model: "gpt-4o-mini",
		API: APIConfig{
			BaseURL:     "https://api.openai.com/v1",
			VisionModel: "gpt-4o-mini",
		},
		Bot: BotConfig{
			CommandPrefix:  "!",
			TimeoutMinutes: 10,
			DataDir:        "./data",
			AuthDir:        "./auth",
		},
		Memory: MemoryConfig{
			Cap:              DefaultMemoryCap,
			SweepThreshold:   50,
			SessionThreshold: 0,
		},
		Media: MediaConfig{
			Enabled:       true,
			MaxBytes:      10 << 20,
			DefaultPrompt: "Describe this in detail. Include any text visible.",
		},
		Maintenance: MaintenanceConfig{
			Enabled:     true,
			SummarySpec: "0 9 * * *",
			SweepSpec:   "@hourly",
		},
		Health: HealthConfig{
			Enabled: false,
			Addr:    ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Timeout returns the inactivity timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Bot.TimeoutMinutes) * time.Minute
}

// SessionFile returns the path of the durable session file.
func (c *Config) SessionFile() string {
	return filepath.Join(c.Bot.DataDir, "sessions.json")
}

// ApplyEnv overlays WABOT_* environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("WABOT_COMMAND_PREFIX"); v != "" {
		c.Bot.CommandPrefix = v
	}
	if v := os.Getenv("WABOT_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Bot.TimeoutMinutes = n
		}
	}
	if v := os.Getenv("WABOT_OWNER"); v != "" {
		c.Bot.Owner = v
	}
	if v := os.Getenv("WABOT_DATA_DIR"); v != "" {
		c.Bot.DataDir = v
	}
	if v := os.Getenv("WABOT_AUTH_DIR"); v != "" {
		c.Bot.AuthDir = v
	}
	if v := os.Getenv("WABOT_API_KEY"); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv("WABOT_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("WABOT_MODEL"); v != "" {
		c.Model = v
	}
}
