package config

// Event store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Auth lists the API tokens accepted on mutating HTTP routes. An empty list
// leaves the routes open, which Validate only permits in the dev environment.
type Auth struct {
	APITokens []string `toml:"APITokens" yaml:"api_tokens"`
}

// RateLimit bounds the request rate of a single client.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute" yaml:"requests_per_minute"`
	Burst             int `toml:"Burst" yaml:"burst"`
}

// EventStore selects the database archiving committed events. An empty
// driver disables the archive.
type EventStore struct {
	Driver string `toml:"Driver" yaml:"driver"`
	DSN    string `toml:"DSN" yaml:"dsn"`
}

// Oracle bounds the prices accepted by the daemon's price feed. Zero
// disables a check.
type Oracle struct {
	MaxAgeSeconds   uint32 `toml:"MaxAgeSeconds" yaml:"max_age_seconds"`
	MaxDeviationBps uint32 `toml:"MaxDeviationBps" yaml:"max_deviation_bps"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
}

// Enabled reports whether any exporter is switched on.
func (t Telemetry) Enabled() bool { return t.Metrics || t.Traces }

// TLS enables HTTPS when both paths are set. Plaintext listeners are limited
// to loopback addresses outside the dev environment.
type TLS struct {
	CertFile string `toml:"CertFile" yaml:"cert_file"`
	KeyFile  string `toml:"KeyFile" yaml:"key_file"`
}

// Enabled reports whether a certificate is configured.
func (t TLS) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }
