// Package config loads and validates relay configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/ogrelay/internal/relay"
)

// Fetcher modes for the page strategies.
const (
	FetcherModeHTTP     = "http"
	FetcherModeHeadless = "headless"
	FetcherModeAuto     = "auto"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Relay    RelayConfig    `mapstructure:"relay"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int    `mapstructure:"port"`
	Path                   string `mapstructure:"path"`
	RequestTimeoutSeconds  int    `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// RelayConfig names the upstreams and request headers of the strategy ladder.
type RelayConfig struct {
	OEmbedEndpoint  string `mapstructure:"oembed_endpoint"`
	ProxyBase       string `mapstructure:"proxy_base"`
	MirrorHost      string `mapstructure:"mirror_host"`
	PageUserAgent   string `mapstructure:"page_user_agent"`
	OEmbedUserAgent string `mapstructure:"oembed_user_agent"`
	Accept          string `mapstructure:"accept"`
	AcceptLanguage  string `mapstructure:"accept_language"`
}

// HTTPConfig configures upstream HTTP calls.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
}

// FetcherConfig selects the page fetcher implementation.
type FetcherConfig struct {
	Mode string `mapstructure:"mode"`
}

// HeadlessConfig configures the headless rendering fetcher.
type HeadlessConfig struct {
	MaxParallel     int `mapstructure:"max_parallel"`
	NavTimeoutSec   int `mapstructure:"nav_timeout_seconds"`
	OGWaitSec       int `mapstructure:"og_wait_seconds"`
	PromotionThresh int `mapstructure:"promotion_threshold"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OGRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	upstreams := relay.DefaultConfig()
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.path", "/api/ogrelay")
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("relay.oembed_endpoint", upstreams.OEmbedEndpoint)
	v.SetDefault("relay.proxy_base", upstreams.ProxyBase)
	v.SetDefault("relay.mirror_host", upstreams.MirrorHost)
	v.SetDefault("relay.page_user_agent", upstreams.PageUserAgent)
	v.SetDefault("relay.oembed_user_agent", upstreams.OEmbedUserAgent)
	v.SetDefault("relay.accept", upstreams.Accept)
	v.SetDefault("relay.accept_language", upstreams.AcceptLanguage)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("fetcher.mode", FetcherModeHTTP)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.og_wait_seconds", 3)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if err := requireAbsoluteURL("relay.oembed_endpoint", c.Relay.OEmbedEndpoint); err != nil {
		return err
	}
	if err := requireAbsoluteURL("relay.proxy_base", c.Relay.ProxyBase); err != nil {
		return err
	}
	if !strings.HasSuffix(c.Relay.ProxyBase, "/") {
		return fmt.Errorf("relay.proxy_base must end with /")
	}
	if c.Relay.MirrorHost == "" || strings.Contains(c.Relay.MirrorHost, "/") {
		return fmt.Errorf("relay.mirror_host must be a bare host name")
	}
	switch c.Fetcher.Mode {
	case FetcherModeHTTP:
	case FetcherModeHeadless, FetcherModeAuto:
		if c.Headless.MaxParallel <= 0 {
			return fmt.Errorf("headless.max_parallel must be > 0 when fetcher.mode is %s", c.Fetcher.Mode)
		}
		if c.Headless.NavTimeoutSec <= 0 {
			return fmt.Errorf("headless.nav_timeout_seconds must be > 0 when fetcher.mode is %s", c.Fetcher.Mode)
		}
	default:
		return fmt.Errorf("fetcher.mode must be %q, %q or %q, got %q",
			FetcherModeHTTP, FetcherModeHeadless, FetcherModeAuto, c.Fetcher.Mode)
	}
	// The request deadline must cover every upstream call of one lookup.
	if budget := c.LadderBudget(); c.RequestTimeout() < budget {
		return fmt.Errorf("server.request_timeout_seconds must be >= %d for fetcher.mode %s, got %d",
			int(budget/time.Second), c.Fetcher.Mode, c.Server.RequestTimeoutSeconds)
	}
	return nil
}

// LadderBudget is the worst-case time one lookup spends waiting on upstreams:
// the oEmbed call plus every page fetch at its own bound.
func (c Config) LadderBudget() time.Duration {
	page := c.UpstreamTimeout()
	switch c.Fetcher.Mode {
	case FetcherModeHeadless:
		page = c.NavTimeout()
	case FetcherModeAuto:
		page += c.NavTimeout()
	}
	return c.UpstreamTimeout() + relay.MaxPageFetches*page
}

func requireAbsoluteURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}
	return nil
}

// UpstreamTimeout bounds a single upstream fetch.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds a whole relay request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// NavTimeout bounds a single headless navigation.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// OGWait bounds how long a headless render waits for og:title to appear.
func (c Config) OGWait() time.Duration {
	return time.Duration(c.Headless.OGWaitSec) * time.Second
}

// ShutdownTimeout bounds graceful server shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// RelayConfig converts the relay section into relay.Config.
func (c Config) RelayConfig() relay.Config {
	return relay.Config{
		OEmbedEndpoint:  c.Relay.OEmbedEndpoint,
		ProxyBase:       c.Relay.ProxyBase,
		MirrorHost:      c.Relay.MirrorHost,
		PageUserAgent:   c.Relay.PageUserAgent,
		OEmbedUserAgent: c.Relay.OEmbedUserAgent,
		Accept:          c.Relay.Accept,
		AcceptLanguage:  c.Relay.AcceptLanguage,
	}
}
