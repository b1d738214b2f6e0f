package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the process configuration. It is built once at startup and passed
// explicitly to the components that need it.
type Config struct {
	// StreamServerURL is the public base URL of the streaming proxy that turns magnets into playable bytes.
	// It is required; startup fails without it.
	StreamServerURL string `env:"STREAM_SERVER_URL,required,notEmpty"`

	// ServerListenAddr specifies the network address that the HTTP server will listen on.
	ServerListenAddr string `env:"SERVER_LISTEN_ADDR" envDefault:":7000"`

	// AddonHost is the public (external) base URL where the addon is accessible.
	AddonHost string `env:"ADDON_HOST" envDefault:"http://127.0.0.1:7000"`

	// IndexBaseURL is the base URL of the YTS compatible torrent index.
	IndexBaseURL string `env:"INDEX_BASE_URL" envDefault:"https://yts.mx"`

	ServiceName        string `env:"SERVICE_NAME" envDefault:"stremio-speculative"`
	ServiceEnvironment string `env:"SERVICE_ENVIRONMENT" envDefault:"lcl"`

	// OTelExporterEndpoint is the OTLP gRPC collector endpoint. Export is disabled when empty.
	OTelExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// LokiHost enables polling of 24h search stats when set.
	LokiHost          string        `env:"LOKI_HOST"`
	StatsPollInterval time.Duration `env:"STATS_POLL_INTERVAL" envDefault:"1m"`

	DiagnosticsChannel string `env:"DIAGNOSTICS_CHANNEL" envDefault:"diagnostics"`
}

// Load parses the configuration from the process environment and validates it.
func Load() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("failed to env.ParseAs: %w", err)
	}

	cfg.StreamServerURL, err = normalizeBaseURL(cfg.StreamServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid STREAM_SERVER_URL: %w", err)
	}

	cfg.IndexBaseURL, err = normalizeBaseURL(cfg.IndexBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid INDEX_BASE_URL: %w", err)
	}

	u, err := url.Parse(cfg.AddonHost)
	if err != nil {
		return nil, fmt.Errorf("invalid ADDON_HOST: %w", err)
	}
	cfg.AddonHost = fmt.Sprintf("%s://%s", u.Scheme, u.Host)

	if cfg.StatsPollInterval <= 0 {
		return nil, errors.New("invalid STATS_POLL_INTERVAL: must be positive")
	}

	if cfg.LokiHost != "" {
		if cfg.LokiHost, err = normalizeBaseURL(cfg.LokiHost); err != nil {
			return nil, fmt.Errorf("invalid LOKI_HOST: %w", err)
		}
	}

	return &cfg, nil
}

// normalizeBaseURL requires an absolute http(s) URL and strips trailing slashes.
func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to url.Parse: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", errors.New("query and fragment are not allowed")
	}

	return strings.TrimRight(raw, "/"), nil
}
