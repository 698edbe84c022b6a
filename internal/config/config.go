// Package config loads the broker's YAML-configured host options, filling
// in sensible defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Options mirrors the host callback surface's init(options) argument:
// broker_id, acl_file, hmac_key, log_file, plus the persistence and
// timing knobs the trust store and graph expose as compile-time defaults.
type Options struct {
	BrokerID string `yaml:"broker_id"`
	ACLFile  string `yaml:"acl_file"`
	HMACKey  string `yaml:"hmac_key"`
	LogFile  string `yaml:"log_file"`

	NetworkMapFile         string `yaml:"network_map_file"`
	TrustStorePathTemplate string `yaml:"trust_store_path_template"`
	MapRefreshIntervalSecs int    `yaml:"map_refresh_interval_seconds"`

	AdminAddr string `yaml:"admin_addr"`
}

// RefreshInterval returns the configured reload cadence as a time.Duration.
func (o Options) RefreshInterval() time.Duration {
	return time.Duration(o.MapRefreshIntervalSecs) * time.Second
}

// TrustStorePath renders the per-broker trust store path from the template,
// e.g. "trust_history/trust_store_%s.txt" -> "trust_history/trust_store_B3.txt".
func (o Options) TrustStorePath() string {
	return fmt.Sprintf(o.TrustStorePathTemplate, o.BrokerID)
}

// Load reads a YAML options file and fills in defaults for anything left
// unset: missing options fall back to defaults rather than failing to load.
func Load(path string) (Options, error) {
	var opts Options
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse config file: %w", err)
	}
	applyDefaults(&opts)
	return opts, nil
}

// Default returns the hardcoded fallback configuration used when no config
// file is available, mirroring the orchestrator's getDefaultConfig pattern.
func Default() Options {
	var opts Options
	applyDefaults(&opts)
	return opts
}

func applyDefaults(o *Options) {
	if o.BrokerID == "" {
		o.BrokerID = "Unknown"
	}
	if o.ACLFile == "" {
		o.ACLFile = "acl.txt"
	}
	if o.HMACKey == "" {
		o.HMACKey = "default_hmac_key"
	}
	if o.LogFile == "" {
		o.LogFile = "plugin_log.txt"
	}
	if o.NetworkMapFile == "" {
		o.NetworkMapFile = "network_map.txt"
	}
	if o.TrustStorePathTemplate == "" {
		o.TrustStorePathTemplate = "trust_history/trust_store_%s.txt"
	}
	if o.MapRefreshIntervalSecs <= 0 {
		o.MapRefreshIntervalSecs = 10
	}
	if o.AdminAddr == "" {
		o.AdminAddr = ":9090"
	}
}
