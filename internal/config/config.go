// Package config holds runtime configuration: tunables from an optional
// TOML file, credentials and secrets from the process environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all tunables. Credentials are intentionally absent: they
// are read from the environment at job construction time so they never
// end up in a file that gets archived with the workflow run.
type Config struct {
	Browser  BrowserConfig  `toml:"browser"`
	Retry    RetryConfig    `toml:"retry"`
	Batch    BatchConfig    `toml:"batch"`
	Output   OutputConfig   `toml:"output"`
	History  HistoryConfig  `toml:"history"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type BrowserConfig struct {
	Headless       bool `toml:"headless"`
	WindowWidth    int  `toml:"window_width"`
	WindowHeight   int  `toml:"window_height"`
	NavTimeoutSec  int  `toml:"nav_timeout_sec"`
	StepTimeoutSec int  `toml:"step_timeout_sec"`
}

type RetryConfig struct {
	Attempts int `toml:"attempts"`
	SleepSec int `toml:"sleep_sec"`
}

type BatchConfig struct {
	AccountGapSec int `toml:"account_gap_sec"`
	JobTimeoutMin int `toml:"job_timeout_min"`
}

type OutputConfig struct {
	ScreenshotDir string `toml:"screenshot_dir"`
	// CookieDir holds per-account session jars for sites that reuse
	// logins across runs.
	CookieDir string `toml:"cookie_dir"`
}

type HistoryConfig struct {
	// Path to the SQLite database. Empty disables history recording.
	DBPath string `toml:"db_path"`
}

type ScheduleConfig struct {
	// Job name -> cron expression, consumed by daemon mode.
	Jobs     map[string]string `toml:"jobs"`
	Timezone string            `toml:"timezone"`
}

// Default returns a Config with the timings the upstream workflows use.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       true,
			WindowWidth:    1920,
			WindowHeight:   1080,
			NavTimeoutSec:  60,
			StepTimeoutSec: 15,
		},
		Retry: RetryConfig{
			Attempts: 3,
			SleepSec: 5,
		},
		Batch: BatchConfig{
			AccountGapSec: 10,
			JobTimeoutMin: 30,
		},
		Output: OutputConfig{
			ScreenshotDir: "output/screenshots",
			CookieDir:     "output/cookies",
		},
		History: HistoryConfig{},
		Schedule: ScheduleConfig{
			Jobs:     map[string]string{},
			Timezone: "UTC",
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing
// file is not an error: jobs run fine on defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating a file a user can edit.
func (c *Config) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// LoadDotenv loads a .env file into the process environment if one is
// present. Absence is normal in CI where secrets arrive as real env vars.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Env is a thin typed accessor for the environment variables the jobs use.
type Env struct{}

func (Env) BotToken() string      { return os.Getenv("TG_BOT_TOKEN") }
func (Env) ChatID() string        { return os.Getenv("TG_CHAT_ID") }
func (Env) AccountFilter() string { return os.Getenv("ACCOUNT_NAME") }

// Proxy returns the configured proxy URL, preferring SOCKS5.
func (Env) Proxy() string {
	if p := os.Getenv("PROXY_SOCKS5"); p != "" {
		return p
	}
	return os.Getenv("PROXY_HTTP")
}

// Accounts returns the raw account string for the named variable, e.g.
// ZAMPTO_ACCOUNT or BILLING_KERIT_MAIL.
func (Env) Accounts(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
