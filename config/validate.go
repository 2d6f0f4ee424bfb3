package config

import (
	"fmt"
	"net"
	"strings"
)

// MaxRequestsPerMinute bounds the configurable per-client request rate.
var MaxRequestsPerMinute = 60_000

// Validate checks the configuration for values the daemon cannot run with.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("listen address %q: %w", cfg.ListenAddress, err)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data dir must be provided")
	}
	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		return fmt.Errorf("tls: cert file and key file must be set together")
	}
	if len(cfg.Auth.APITokens) == 0 && !strings.EqualFold(cfg.Environment, "dev") {
		return fmt.Errorf("auth: at least one api token is required outside the dev environment")
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if err := cfg.EventStore.validate(); err != nil {
		return fmt.Errorf("event store: %w", err)
	}
	if cfg.Oracle.MaxDeviationBps > 10_000 {
		return fmt.Errorf("oracle: max deviation above 10000 bps")
	}
	if cfg.Telemetry.Enabled() && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: endpoint required when an exporter is enabled")
	}
	return nil
}

func (r RateLimit) validate() error {
	if r.RequestsPerMinute < 0 || r.Burst < 0 {
		return fmt.Errorf("values must not be negative")
	}
	if r.RequestsPerMinute > MaxRequestsPerMinute {
		return fmt.Errorf("requests per minute above %d", MaxRequestsPerMinute)
	}
	if r.RequestsPerMinute > 0 && r.Burst == 0 {
		return fmt.Errorf("burst must be positive when a rate is set")
	}
	return nil
}

func (e EventStore) validate() error {
	switch e.Driver {
	case "":
		return nil
	case DriverSQLite, DriverPostgres:
		if e.DSN == "" {
			return fmt.Errorf("dsn required for driver %q", e.Driver)
		}
		return nil
	default:
		return fmt.Errorf("unsupported driver %q", e.Driver)
	}
}
