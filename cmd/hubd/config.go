package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// daemonConfig is hubd's own YAML file, separate from the hub-wide TOML
// config: listener addresses and local paths belong to the daemon, protocol
// thresholds to the shared config.
type daemonConfig struct {
	MetricsAddr     string `yaml:"metricsAddr"`
	EventStreamAddr string `yaml:"eventStreamAddr"`
	AuditLogPath    string `yaml:"auditLogPath"`
	ShardCount      int    `yaml:"shardCount"`
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		MetricsAddr:     ":9090",
		EventStreamAddr: ":7543",
		AuditLogPath:    "hubd-audit.log",
		ShardCount:      16,
	}
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read daemon config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode daemon config %s: %w", path, err)
	}
	if cfg.MetricsAddr == "" || cfg.EventStreamAddr == "" {
		return cfg, fmt.Errorf("daemon config %s: listener addresses must not be empty", path)
	}
	return cfg, nil
}
