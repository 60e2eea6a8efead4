package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the service reads
const EnvPrefix = "REELGRAB_"

// Strategy names accepted in extraction.strategies
const (
	StrategyThirdParty = "thirdparty"
	StrategyPage       = "page"
	StrategyEmbed      = "embed"
	StrategyBrowser    = "browser"
)

// KnownStrategies lists every strategy name in its canonical order
var KnownStrategies = []string{StrategyThirdParty, StrategyPage, StrategyEmbed, StrategyBrowser}

// Config holds all configuration options for the reel extraction service
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server" envPrefix:"SERVER_"`
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" envPrefix:"EXTRACTION_"`
	ThirdParty ThirdPartyConfig `yaml:"thirdparty" json:"thirdparty" envPrefix:"THIRDPARTY_"`
	Page       ScrapeConfig     `yaml:"page" json:"page" envPrefix:"PAGE_"`
	Embed      ScrapeConfig     `yaml:"embed" json:"embed" envPrefix:"EMBED_"`
	Browser    BrowserConfig    `yaml:"browser" json:"browser" envPrefix:"BROWSER_"`
	Download   DownloadConfig   `yaml:"download" json:"download" envPrefix:"DOWNLOAD_"`
	Session    SessionConfig    `yaml:"session" json:"session" envPrefix:"SESSION_"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging" envPrefix:"LOG_"`
	Tracing    TracingConfig    `yaml:"tracing" json:"tracing" envPrefix:"TRACING_"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr              string        `yaml:"addr" json:"addr" env:"ADDR"`
	AllowedOrigin     string        `yaml:"allowed_origin" json:"allowed_origin" env:"ALLOWED_ORIGIN"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// ExtractionConfig controls which strategies run and the pre-attempt delay
type ExtractionConfig struct {
	Strategies []string      `yaml:"strategies" json:"strategies" env:"STRATEGIES" envSeparator:","`
	DelayMin   time.Duration `yaml:"delay_min" json:"delay_min" env:"DELAY_MIN"`
	DelayMax   time.Duration `yaml:"delay_max" json:"delay_max" env:"DELAY_MAX"`
}

// ThirdPartyConfig configures the downloader-site delegation strategy
type ThirdPartyConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	Origin   string        `yaml:"origin" json:"origin" env:"ORIGIN"`
	Parser   string        `yaml:"parser" json:"parser" env:"PARSER"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
}

// ScrapeConfig configures the page and embed scrape strategies
type ScrapeConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" env:"USER_AGENT"`
}

// BrowserConfig configures the headless browser strategy
type BrowserConfig struct {
	Bin         string        `yaml:"bin" json:"bin" env:"BIN"`
	Headless    bool          `yaml:"headless" json:"headless" env:"HEADLESS"`
	NoSandbox   bool          `yaml:"no_sandbox" json:"no_sandbox" env:"NO_SANDBOX"`
	Proxy       string        `yaml:"proxy" json:"proxy" env:"PROXY"`
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout" env:"IDLE_TIMEOUT"`
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay" env:"SETTLE_DELAY"`
	// Timeout bounds the whole attempt, from launch to the last page read
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	// CandidatePolicy picks among intercepted videos: shortest-url or first-seen
	CandidatePolicy string `yaml:"candidate_policy" json:"candidate_policy" env:"CANDIDATE_POLICY"`
}

// DownloadConfig configures the streaming proxy
type DownloadConfig struct {
	// Timeout bounds the upstream response headers; 0 leaves streaming unbounded
	Timeout      time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	AllowedHosts []string      `yaml:"allowed_hosts" json:"allowed_hosts" env:"ALLOWED_HOSTS" envSeparator:","`
	UserAgent    string        `yaml:"user_agent" json:"user_agent" env:"USER_AGENT"`
}

// SessionConfig holds an optional Instagram session used by the scrape strategies
type SessionConfig struct {
	ID        string `yaml:"id" json:"id" env:"ID"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token" env:"CSRF_TOKEN"`
	// Store selects where a saved session is looked up: auto, keyring, file, env or none
	Store string `yaml:"store" json:"store" env:"STORE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" json:"format" env:"FORMAT"`
	File   string `yaml:"file" json:"file" env:"FILE"`
}

// TracingConfig configures OTLP span export
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
	Insecure    bool   `yaml:"insecure" json:"insecure" env:"INSECURE"`
}

// DefaultConfig returns a Config instance with the stock extraction pipeline
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			AllowedOrigin:     "*",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Extraction: ExtractionConfig{
			Strategies: []string{StrategyThirdParty, StrategyPage, StrategyEmbed},
			DelayMin:   1000 * time.Millisecond,
			DelayMax:   3000 * time.Millisecond,
		},
		ThirdParty: ThirdPartyConfig{
			Endpoint: "https://v3.saveig.app/api/ajaxSearch",
			Origin:   "https://saveig.app",
			Parser:   "regex",
			Timeout:  15 * time.Second,
		},
		Page: ScrapeConfig{
			Timeout: 15 * time.Second,
		},
		Embed: ScrapeConfig{
			Timeout: 10 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:    true,
			NoSandbox:   true,
			IdleTimeout:     45 * time.Second,
			SettleDelay:     2 * time.Second,
			Timeout:         90 * time.Second,
			CandidatePolicy: "shortest-url",
		},
		Download: DownloadConfig{
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Store: "auto",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			ServiceName: "reelgrab",
		},
	}
}

// LoadFromEnv overlays REELGRAB_* environment variables onto the config.
// Unset variables leave the current value untouched.
func (c *Config) LoadFromEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	// The standard OTLP variable also enables tracing.
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".reelgrab.yaml",
		".reelgrab.yml",
		"reelgrab.yaml",
		filepath.Join(home, ".config", "reelgrab", "config.yaml"),
		filepath.Join(home, ".config", "reelgrab", "config.yml"),
		filepath.Join(home, ".reelgrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}

	if len(c.Extraction.Strategies) == 0 {
		errs = append(errs, errors.New("at least one extraction strategy is required"))
	}
	for _, name := range lo.Uniq(c.Extraction.Strategies) {
		if !lo.Contains(KnownStrategies, name) {
			errs = append(errs, fmt.Errorf("unknown extraction strategy %q (known: %s)", name, strings.Join(KnownStrategies, ", ")))
		}
	}
	for _, name := range lo.FindDuplicates(c.Extraction.Strategies) {
		errs = append(errs, fmt.Errorf("extraction strategy %q listed twice", name))
	}
	if c.Extraction.DelayMin < 0 || c.Extraction.DelayMax < 0 {
		errs = append(errs, errors.New("extraction delay cannot be negative"))
	}
	if c.Extraction.DelayMin > c.Extraction.DelayMax {
		errs = append(errs, errors.New("extraction delay_min must not exceed delay_max"))
	}

	if c.ThirdParty.Endpoint == "" {
		errs = append(errs, errors.New("third-party endpoint is required"))
	}
	switch c.ThirdParty.Parser {
	case "regex", "dom":
	default:
		errs = append(errs, fmt.Errorf("invalid third-party parser %q (regex or dom)", c.ThirdParty.Parser))
	}

	timeouts := map[string]time.Duration{
		"thirdparty.timeout":   c.ThirdParty.Timeout,
		"page.timeout":         c.Page.Timeout,
		"embed.timeout":        c.Embed.Timeout,
		"browser.idle_timeout": c.Browser.IdleTimeout,
		"browser.timeout":      c.Browser.Timeout,
	}
	for _, name := range []string{"thirdparty.timeout", "page.timeout", "embed.timeout", "browser.idle_timeout", "browser.timeout"} {
		if timeouts[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	switch c.Browser.CandidatePolicy {
	case "", "shortest-url", "first-seen":
	default:
		errs = append(errs, fmt.Errorf("invalid browser candidate policy %q (shortest-url or first-seen)", c.Browser.CandidatePolicy))
	}
	if c.Browser.Timeout > 0 && c.Browser.Timeout <= c.Browser.IdleTimeout+c.Browser.SettleDelay {
		errs = append(errs, errors.New("browser.timeout must exceed idle_timeout plus settle_delay"))
	}
	if c.Browser.SettleDelay < 0 {
		errs = append(errs, errors.New("browser.settle_delay cannot be negative"))
	}
	if c.Download.Timeout < 0 {
		errs = append(errs, errors.New("download.timeout cannot be negative"))
	}

	switch c.Session.Store {
	case "auto", "keyring", "file", "env", "none":
	default:
		errs = append(errs, fmt.Errorf("invalid session store %q", c.Session.Store))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (console or json)", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if strategies, ok := flags["strategies"].([]string); ok && len(strategies) > 0 {
		c.Extraction.Strategies = strategies
	}
	if parser, ok := flags["parser"].(string); ok && parser != "" {
		c.ThirdParty.Parser = parser
	}
	if bin, ok := flags["browser-bin"].(string); ok && bin != "" {
		c.Browser.Bin = bin
	}
	if delay, ok := flags["no-delay"].(bool); ok && delay {
		c.Extraction.DelayMin = 0
		c.Extraction.DelayMax = 0
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat, ok := flags["log-format"].(string); ok && logFormat != "" {
		c.Logging.Format = logFormat
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".reelgrab.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
