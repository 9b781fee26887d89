// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper uses for environment overrides, e.g.
// BROWSER_WORKER_AGENT_BROWSER_HEADLESS=false.
const EnvPrefix = "BROWSER_WORKER_AGENT"

// ErrMissingCredential is returned when the decision oracle has no API key.
// Callers check it before any browser work starts.
var ErrMissingCredential = errors.New("missing LLM API credential")

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserDriver selects the rendering engine adapter.
type BrowserDriver string

const (
	DriverChromedp BrowserDriver = "chromedp"
	DriverRod      BrowserDriver = "rod"
)

// BrowserConfig holds settings for the headless browser instance owned by a run.
type BrowserConfig struct {
	Driver          BrowserDriver  `mapstructure:"driver" yaml:"driver"`
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Stealth         bool           `mapstructure:"stealth" yaml:"stealth"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// ViewportSize returns the configured width and height, falling back to 1280x720.
func (b BrowserConfig) ViewportSize() (int, int) {
	w, h := b.Viewport["width"], b.Viewport["height"]
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 720
	}
	return w, h
}

// NetworkConfig tunes navigation and settle timing.
type NetworkConfig struct {
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	NetworkIdleTimeout time.Duration `mapstructure:"network_idle_timeout" yaml:"network_idle_timeout"`
	SettleTimeout      time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	PostClickWait      time.Duration `mapstructure:"post_click_wait" yaml:"post_click_wait"`
	PostScrollWait     time.Duration `mapstructure:"post_scroll_wait" yaml:"post_scroll_wait"`
	ScrollGestureWait  time.Duration `mapstructure:"scroll_gesture_wait" yaml:"scroll_gesture_wait"`
	ScrollDelta        int           `mapstructure:"scroll_delta" yaml:"scroll_delta"`
}

// AgentConfig configures the navigation loop and its decision oracle.
type AgentConfig struct {
	DefaultMaxSteps int           `mapstructure:"default_max_steps" yaml:"default_max_steps"`
	MaxStepsLimit   int           `mapstructure:"max_steps_limit" yaml:"max_steps_limit"`
	RunTimeout      time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	LLM             LLMConfig     `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// LLMConfig defines the configuration for the decision oracle's model.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig configures the optional archive of finished runs.
type StoreConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "browser-worker-agent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", string(DriverChromedp))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 720})

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.network_idle_timeout", "30s")
	v.SetDefault("network.settle_timeout", "10s")
	v.SetDefault("network.post_click_wait", "2s")
	v.SetDefault("network.post_scroll_wait", "1s")
	v.SetDefault("network.scroll_gesture_wait", "1500ms")
	v.SetDefault("network.scroll_delta", 2000)

	// -- Agent --
	v.SetDefault("agent.default_max_steps", 20)
	v.SetDefault("agent.max_steps_limit", 100)
	v.SetDefault("agent.run_timeout", "15m")
	v.SetDefault("agent.llm.provider", string(ProviderOpenAI))
	v.SetDefault("agent.llm.model", "")
	v.SetDefault("agent.llm.api_timeout", "30s")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 1024)
	v.SetDefault("agent.llm.max_retries", 3)
	v.SetDefault("agent.llm.requests_per_second", 2.0)

	// -- Server --
	v.SetDefault("server.listen_addr", ":8000")
	v.SetDefault("server.max_concurrent_runs", 2)
	v.SetDefault("server.request_timeout", "20m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// -- Store --
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.sqlite_path", "runs.db")
}

// NewConfigFromViper unmarshals and validates the configuration. Provider
// specific environment variables (OPENAI_MODEL, OPENAI_API_KEY, GEMINI_MODEL,
// GEMINI_API_KEY) fill in anything left empty.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("agent.llm.api_key", EnvPrefix+"_AGENT_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Agent.LLM.ApplyEnvironment(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ApplyEnvironment resolves the model and credential from the provider's
// conventional environment variables, then the hardcoded model fallback.
func (l *LLMConfig) ApplyEnvironment(getenv func(string) string) {
	modelVar, keyVar, fallback := "OPENAI_MODEL", "OPENAI_API_KEY", DefaultOpenAIModel
	if l.Provider == ProviderGemini {
		modelVar, keyVar, fallback = "GEMINI_MODEL", "GEMINI_API_KEY", DefaultGeminiModel
	}
	if l.Model == "" {
		l.Model = getenv(modelVar)
	}
	if l.Model == "" {
		l.Model = fallback
	}
	if l.APIKey == "" {
		l.APIKey = getenv(keyVar)
	}
}

// ValidateCredentials reports ErrMissingCredential when no API key is set.
func (l LLMConfig) ValidateCredentials() error {
	if l.APIKey == "" {
		keyVar := "OPENAI_API_KEY"
		if l.Provider == ProviderGemini {
			keyVar = "GEMINI_API_KEY"
		}
		return fmt.Errorf("%w: %s is not configured", ErrMissingCredential, keyVar)
	}
	return nil
}

// Validate checks the configuration for semantic errors.
func (c *Config) Validate() error {
	switch c.Browser.Driver {
	case DriverChromedp, DriverRod:
	default:
		return fmt.Errorf("browser.driver must be one of [%s, %s], got '%s'", DriverChromedp, DriverRod, c.Browser.Driver)
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be positive")
	}
	if c.Network.ScrollDelta <= 0 {
		return fmt.Errorf("network.scroll_delta must be a positive integer")
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if c.Server.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("server.max_concurrent_runs must be a positive integer")
	}
	// A request must outlive the run it carries so the run can report its own timeout.
	if c.Server.RequestTimeout > 0 && c.Agent.RunTimeout > 0 && c.Server.RequestTimeout <= c.Agent.RunTimeout {
		return fmt.Errorf("server.request_timeout (%s) must exceed agent.run_timeout (%s)", c.Server.RequestTimeout, c.Agent.RunTimeout)
	}
	if c.Store.Enabled && c.Store.SQLitePath == "" {
		return fmt.Errorf("store.sqlite_path is required when the store is enabled")
	}
	return nil
}

// Validate checks the agent section.
func (a AgentConfig) Validate() error {
	if a.DefaultMaxSteps <= 0 {
		return fmt.Errorf("default_max_steps must be a positive integer")
	}
	if a.MaxStepsLimit < a.DefaultMaxSteps {
		return fmt.Errorf("max_steps_limit (%d) must be >= default_max_steps (%d)", a.MaxStepsLimit, a.DefaultMaxSteps)
	}
	switch a.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported llm.provider '%s'. Supported: [%s, %s]", a.LLM.Provider, ProviderOpenAI, ProviderGemini)
	}
	if a.LLM.Temperature < 0 || a.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	if a.LLM.APITimeout <= 0 {
		return fmt.Errorf("llm.api_timeout must be positive")
	}
	return nil
}
