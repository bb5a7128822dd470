package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/ogrelay/internal/relay"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.Path != "/api/ogrelay" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Fetcher.Mode != FetcherModeHTTP {
		t.Fatalf("expected http fetcher mode, got %q", cfg.Fetcher.Mode)
	}
	if got := cfg.RelayConfig(); got != relay.DefaultConfig() {
		t.Fatalf("expected relay defaults, got %+v", got)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("expected metrics enabled by default")
	}
	if got := cfg.UpstreamTimeout(); got != 15*time.Second {
		t.Fatalf("expected 15s upstream timeout, got %v", got)
	}
	if cfg.Headless.PromotionThresh != 2048 {
		t.Fatalf("expected promotion threshold 2048, got %d", cfg.Headless.PromotionThresh)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  path: /relay
  request_timeout_seconds: 240
  shutdown_timeout_seconds: 3
relay:
  oembed_endpoint: https://oembed.internal/oembed/
  proxy_base: https://proxy.internal/
  mirror_host: mirror.internal
  page_user_agent: page-agent
  oembed_user_agent: oembed-agent
http:
  timeout_seconds: 45
  max_body_bytes: 1024
fetcher:
  mode: headless
headless:
  max_parallel: 2
  nav_timeout_seconds: 30
logging:
  development: false
  level: debug
metrics:
  enabled: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.Path != "/relay" {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if cfg.Fetcher.Mode != FetcherModeHeadless || cfg.Headless.MaxParallel != 2 {
		t.Fatalf("expected headless overrides, got %+v %+v", cfg.Fetcher, cfg.Headless)
	}
	rc := cfg.RelayConfig()
	if rc.OEmbedEndpoint != "https://oembed.internal/oembed/" || rc.MirrorHost != "mirror.internal" {
		t.Fatalf("expected relay overrides, got %+v", rc)
	}
	if rc.PageUserAgent != "page-agent" || rc.OEmbedUserAgent != "oembed-agent" {
		t.Fatalf("expected user agent overrides, got %+v", rc)
	}
	if rc.AcceptLanguage != relay.DefaultConfig().AcceptLanguage {
		t.Fatalf("expected default accept-language to survive, got %q", rc.AcceptLanguage)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "debug" || cfg.Metrics.Enabled {
		t.Fatalf("expected logging/metrics overrides, got %+v %+v", cfg.Logging, cfg.Metrics)
	}
	if got := cfg.UpstreamTimeout(); got != 45*time.Second {
		t.Fatalf("expected upstream timeout 45s, got %v", got)
	}
	if got := cfg.RequestTimeout(); got != 240*time.Second {
		t.Fatalf("expected request timeout 240s, got %v", got)
	}
	if got := cfg.ShutdownTimeout(); got != 3*time.Second {
		t.Fatalf("expected shutdown timeout 3s, got %v", got)
	}
	if got := cfg.NavTimeout(); got != 30*time.Second {
		t.Fatalf("expected nav timeout 30s, got %v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OGRELAY_SERVER_PORT", "9191")
	t.Setenv("OGRELAY_RELAY_MIRROR_HOST", "env-mirror.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Fatalf("expected env port 9191, got %d", cfg.Server.Port)
	}
	if cfg.Relay.MirrorHost != "env-mirror.example" {
		t.Fatalf("expected env mirror host, got %q", cfg.Relay.MirrorHost)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLadderBudget(t *testing.T) {
	t.Parallel()

	cfg := Config{
		HTTP:     HTTPConfig{TimeoutSeconds: 10},
		Headless: HeadlessConfig{NavTimeoutSec: 20},
	}
	tests := map[string]time.Duration{
		FetcherModeHTTP:     70 * time.Second,
		FetcherModeHeadless: 130 * time.Second,
		FetcherModeAuto:     190 * time.Second,
	}
	for mode, want := range tests {
		c := cfg
		c.Fetcher.Mode = mode
		if got := c.LadderBudget(); got != want {
			t.Fatalf("mode %s: expected budget %v, got %v", mode, want, got)
		}
	}
}

func TestDefaultRequestTimeoutCoversEveryMode(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, mode := range []string{FetcherModeHTTP, FetcherModeHeadless, FetcherModeAuto} {
		c := base
		c.Fetcher.Mode = mode
		if err := c.Validate(); err != nil {
			t.Fatalf("mode %s: default config invalid: %v", mode, err)
		}
	}
	if got := base.OGWait(); got != 3*time.Second {
		t.Fatalf("expected 3s og wait, got %v", got)
	}
}

func TestShutdownTimeoutFallback(t *testing.T) {
	t.Parallel()

	if got := (Config{}).ShutdownTimeout(); got != 10*time.Second {
		t.Fatalf("expected 10s fallback, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "relative path",
			cfg: func() Config {
				c := base
				c.Server.Path = "api"
				return c
			}(),
			want: "server.path",
		},
		{
			name: "invalid request timeout",
			cfg: func() Config {
				c := base
				c.Server.RequestTimeoutSeconds = 0
				return c
			}(),
			want: "server.request_timeout_seconds",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "relative oembed endpoint",
			cfg: func() Config {
				c := base
				c.Relay.OEmbedEndpoint = "/oembed"
				return c
			}(),
			want: "relay.oembed_endpoint",
		},
		{
			name: "proxy base without slash",
			cfg: func() Config {
				c := base
				c.Relay.ProxyBase = "https://r.jina.ai"
				return c
			}(),
			want: "relay.proxy_base",
		},
		{
			name: "mirror host with scheme",
			cfg: func() Config {
				c := base
				c.Relay.MirrorHost = "https://ddinstagram.com"
				return c
			}(),
			want: "relay.mirror_host",
		},
		{
			name: "unknown fetcher mode",
			cfg: func() Config {
				c := base
				c.Fetcher.Mode = "rod"
				return c
			}(),
			want: "fetcher.mode",
		},
		{
			name: "headless missing max parallel",
			cfg: func() Config {
				c := base
				c.Fetcher.Mode = FetcherModeHeadless
				c.Headless.MaxParallel = 0
				return c
			}(),
			want: "headless.max_parallel",
		},
		{
			name: "auto missing max parallel",
			cfg: func() Config {
				c := base
				c.Fetcher.Mode = FetcherModeAuto
				c.Headless.MaxParallel = 0
				return c
			}(),
			want: "fetcher.mode is auto",
		},
		{
			name: "headless missing nav timeout",
			cfg: func() Config {
				c := base
				c.Fetcher.Mode = FetcherModeHeadless
				c.Headless.NavTimeoutSec = 0
				return c
			}(),
			want: "headless.nav_timeout_seconds",
		},
		{
			name: "request timeout shorter than ladder",
			cfg: func() Config {
				c := base
				c.Server.RequestTimeoutSeconds = 60
				return c
			}(),
			want: "server.request_timeout_seconds must be >= 105",
		},
		{
			name: "request timeout shorter than auto ladder",
			cfg: func() Config {
				c := base
				c.Fetcher.Mode = FetcherModeAuto
				c.Server.RequestTimeoutSeconds = 200
				return c
			}(),
			want: "must be >= 255 for fetcher.mode auto",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
