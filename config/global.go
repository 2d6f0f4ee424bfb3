package config

import "strings"

// Pauses switches native modules off. A paused lending module rejects user
// operations while admin configuration keeps working.
type Pauses struct {
	Lending bool `toml:"Lending" yaml:"lending"`
}

// Quota caps the rate of operations a single account may submit.
type Quota struct {
	MaxRequestsPerMin uint32 `toml:"MaxRequestsPerMin" yaml:"max_requests_per_min"`
}

// Quotas groups quotas for each module.
type Quotas struct {
	Lending Quota `toml:"Lending" yaml:"lending"`
}

// Global bundles the policy knobs enforced across the daemon.
type Global struct {
	Pauses Pauses `toml:"Pauses" yaml:"pauses"`
	Quotas Quotas `toml:"Quotas" yaml:"quotas"`
}

// IsPaused reports whether the named module is paused.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case "lending":
		return p.Lending
	default:
		return false
	}
}
