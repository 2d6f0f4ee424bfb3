package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime settings of the lending daemon.
type Config struct {
	ListenAddress string     `toml:"ListenAddress" yaml:"listen"`
	DataDir       string     `toml:"DataDir" yaml:"data_dir"`
	GenesisFile   string     `toml:"GenesisFile" yaml:"genesis"`
	Environment   string     `toml:"Environment" yaml:"environment"`
	TLS           TLS        `toml:"TLS" yaml:"tls"`
	Auth          Auth       `toml:"Auth" yaml:"auth"`
	RateLimit     RateLimit  `toml:"RateLimit" yaml:"rate_limit"`
	EventStore    EventStore `toml:"EventStore" yaml:"event_store"`
	Oracle        Oracle     `toml:"Oracle" yaml:"oracle"`
	Telemetry     Telemetry  `toml:"Telemetry" yaml:"telemetry"`
	Global        Global     `toml:"global" yaml:"global"`
}

// Load loads the configuration from the given path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as TOML. A missing file is
// created with the defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else {
		meta, err := toml.Decode(string(raw), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ListenAddress: "127.0.0.1:8087",
		DataDir:       "./moneymarket-data",
		GenesisFile:   "",
		Environment:   "dev",
		RateLimit: RateLimit{
			RequestsPerMinute: 600,
			Burst:             60,
		},
		EventStore: EventStore{
			Driver: DriverSQLite,
			DSN:    "events.db",
		},
		Oracle: Oracle{
			MaxAgeSeconds:   3600,
			MaxDeviationBps: 2000,
		},
		Telemetry: Telemetry{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
	}
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	cfg.GenesisFile = strings.TrimSpace(cfg.GenesisFile)
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.EventStore.Driver = strings.ToLower(strings.TrimSpace(cfg.EventStore.Driver))
	cfg.EventStore.DSN = strings.TrimSpace(cfg.EventStore.DSN)
	cfg.TLS.CertFile = strings.TrimSpace(cfg.TLS.CertFile)
	cfg.TLS.KeyFile = strings.TrimSpace(cfg.TLS.KeyFile)

	var tokens []string
	for _, token := range cfg.Auth.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	cfg.Auth.APITokens = tokens
}

// EventStorePath resolves a relative sqlite DSN against the data directory.
func (cfg *Config) EventStorePath() string {
	dsn := cfg.EventStore.DSN
	if cfg.EventStore.Driver != DriverSQLite || dsn == "" || filepath.IsAbs(dsn) || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return filepath.Join(cfg.DataDir, dsn)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
