package quiz

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/quizagent/quiz/internal/browser"
	"github.com/hazyhaar/quizagent/shield"
)

// Config is the agent configuration. It is built once by the binary and
// shared read-only by every session.
type Config struct {
	// Email is the operator address used in fallback payloads.
	Email string `yaml:"email"`
	// Secret is the shared secret checked at the front door and sent with
	// every payload.
	Secret string `yaml:"secret"`

	SessionCeiling    time.Duration `yaml:"session_ceiling"`
	SafetyBuffer      time.Duration `yaml:"safety_buffer"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SubmitTimeout     time.Duration `yaml:"submit_timeout"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`

	MaxScreenshotChars int   `yaml:"max_screenshot_chars"`
	MaxScriptChars     int   `yaml:"max_script_chars"`
	MaxPages           int   `yaml:"max_pages"`
	MaxSessions        int64 `yaml:"max_sessions"`
	FetchRetries       int   `yaml:"fetch_retries"`
	SubmitRetries      int   `yaml:"submit_retries"`
	FetchMaxBytes      int64 `yaml:"fetch_max_bytes"`

	// BlockPrivateURLs applies SSRF checks to remote fetches and submits.
	BlockPrivateURLs bool `yaml:"block_private_urls"`

	Browser   BrowserConfig          `yaml:"browser"`
	RateLimit shield.RateLimitConfig `yaml:"rate_limit"`
}

// BrowserConfig controls how pages are opened.
type BrowserConfig struct {
	Mode             browser.Mode `yaml:"mode"`   // headless | headful | http
	Remote           string       `yaml:"remote"` // CDP websocket URL
	ResourceBlocking []string     `yaml:"resource_blocking"`
	XvfbDisplay      string       `yaml:"xvfb_display"`
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quiz: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("quiz: parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.SessionCeiling <= 0 {
		c.SessionCeiling = 3 * time.Minute
	}
	if c.SafetyBuffer <= 0 {
		c.SafetyBuffer = 5 * time.Second
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 40 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 30 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.MaxScreenshotChars <= 0 {
		c.MaxScreenshotChars = 200000
	}
	if c.MaxScriptChars <= 0 {
		c.MaxScriptChars = 2000
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 4
	}
	if c.FetchRetries < 0 {
		c.FetchRetries = 0
	}
	if c.SubmitRetries < 0 {
		c.SubmitRetries = 0
	}
	if c.FetchMaxBytes <= 0 {
		c.FetchMaxBytes = 10 << 20
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = browser.ModeHeadless
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
}

// ApplyEnv overlays QUIZ_* environment variables. getenv is os.Getenv in
// production.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("QUIZ_EMAIL"); v != "" {
		c.Email = v
	}
	if v := getenv("QUIZ_SECRET"); v != "" {
		c.Secret = v
	}
	if v := getenv("QUIZ_BROWSER_MODE"); v != "" {
		c.Browser.Mode = browser.Mode(v)
	}
	if v := getenv("QUIZ_BROWSER_REMOTE"); v != "" {
		c.Browser.Remote = v
	}
}

// Validate reports configuration that cannot run.
func (c *Config) Validate() error {
	var errs []error
	if c.Email == "" {
		errs = append(errs, errors.New("email is required"))
	}
	if c.Secret == "" {
		errs = append(errs, errors.New("secret is required"))
	}
	for name, d := range map[string]time.Duration{
		"session_ceiling":    c.SessionCeiling,
		"navigation_timeout": c.NavigationTimeout,
		"submit_timeout":     c.SubmitTimeout,
		"fetch_timeout":      c.FetchTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.SafetyBuffer < 0 || c.SafetyBuffer >= c.SessionCeiling {
		errs = append(errs, errors.New("safety_buffer must be within session_ceiling"))
	}
	switch c.Browser.Mode {
	case browser.ModeHTTP, browser.ModeHeadless, browser.ModeHeadful:
	default:
		errs = append(errs, fmt.Errorf("unknown browser mode %q", c.Browser.Mode))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("quiz: invalid config: %w", err)
	}
	return nil
}

// SessionBudget is the usable time of one session: ceiling minus buffer.
func (c *Config) SessionBudget() time.Duration {
	return c.SessionCeiling - c.SafetyBuffer
}
