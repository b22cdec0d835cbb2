// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"pcgmon/internal/log"
)

// DefaultPath is searched when LoadConfig is given an empty path.
const DefaultPath = "config.yaml"

// LoadConfig reads the YAML file at path over the defaults. With an empty
// path DefaultPath is used if it exists, otherwise the defaults alone. ENV_*
// overrides are applied after the file, then the result is normalised and
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("configuration: loaded %s", path)
	}

	cfg.applyEnvOverrides()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, failing if the file already exists.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("refusing to overwrite %s", path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func envBool(name string, dst *bool) {
	if val, ok := os.LookupEnv(name); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
			log.Infof("configuration: %s=%v", name, b)
		} else {
			log.Warnf("configuration: ignoring %s=%q: %v", name, val, err)
		}
	}
}

func envString(name string, dst *string) {
	if val, ok := os.LookupEnv(name); ok {
		*dst = val
		log.Infof("configuration: %s=%s", name, val)
	}
}

func envInt(name string, dst *int) {
	if val, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
			log.Infof("configuration: %s=%d", name, n)
		} else {
			log.Warnf("configuration: ignoring %s=%q: %v", name, val, err)
		}
	}
}

func envFloat(name string, dst *float64) {
	if val, ok := os.LookupEnv(name); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
			log.Infof("configuration: %s=%g", name, f)
		} else {
			log.Warnf("configuration: ignoring %s=%q: %v", name, val, err)
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val, ok := os.LookupEnv(name); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
			log.Infof("configuration: %s=%s", name, d)
		} else {
			log.Warnf("configuration: ignoring %s=%q: %v", name, val, err)
		}
	}
}

func (cfg *Config) applyEnvOverrides() {
	envBool("ENV_DEBUG", &cfg.Debug)
	envString("ENV_LOG_LEVEL", &cfg.LogLevel)

	envInt("ENV_THRESHOLD", &cfg.Detector.Threshold)
	envFloat("ENV_COOLDOWN", &cfg.Detector.Cooldown)

	envBool("ENV_WS_ENABLED", &cfg.Transport.WebSocket.Enabled)
	envString("ENV_WS_ADDRESS", &cfg.Transport.WebSocket.Address)

	envBool("ENV_UDP_ENABLED", &cfg.Transport.UDP.Enabled)
	envString("ENV_UDP_TARGET_ADDRESS", &cfg.Transport.UDP.TargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &cfg.Transport.UDP.SendInterval)

	envBool("ENV_METRICS_ENABLED", &cfg.Metrics.Enabled)
	envString("ENV_METRICS_ADDRESS", &cfg.Metrics.Address)
}
