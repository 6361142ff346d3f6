package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/Shiori/common/environment"
	"github.com/bdobrica/Shiori/internal/shiori/format"
	"github.com/bdobrica/Shiori/internal/shiori/host"
	"github.com/bdobrica/Shiori/internal/shiori/matrix"
	"github.com/bdobrica/Shiori/internal/shiori/module"
	"github.com/bdobrica/Shiori/internal/shiori/pinboard"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	// HTTPAddr is the health server address. Empty disables it.
	HTTPAddr string
	Matrix   matrix.Config
	Host     host.Config
	Modules  ModulesConfig
}

// ModulesConfig is the "modules" section of the optional YAML file.
type ModulesConfig struct {
	Pinboard PinboardConfig `yaml:"pinboard"`
}

// PinboardConfig enables and tunes the pinboard.
type PinboardConfig struct {
	// Enabled defaults to true when omitted.
	Enabled         *bool `yaml:"enabled"`
	pinboard.Config `yaml:",inline"`
}

// IsEnabled reports whether the module should be registered.
func (p PinboardConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type fileConfig struct {
	Modules ModulesConfig `yaml:"modules"`
}

// LoadModulesFile reads the YAML file at path. An empty path yields the
// defaults.
func LoadModulesFile(path string) (ModulesConfig, error) {
	if path == "" {
		return ModulesConfig{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ModulesConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return ModulesConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc.Modules, nil
}

// LoadConfig builds the configuration from environment variables and the
// optional SHIORI_CONFIG file.
func LoadConfig() (*Config, error) {
	var missing []error
	required := func(name string) string {
		v, err := environment.RequiredString(name)
		if err != nil {
			missing = append(missing, err)
		}
		return v
	}

	cfg := &Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./shiori.db"),
		HTTPAddr:     environment.StringOr("SHIORI_HTTP_ADDR", ""),
		Matrix: matrix.Config{
			Homeserver:  required("MATRIX_HOMESERVER"),
			UserID:      required("MATRIX_USER_ID"),
			AccessToken: required("MATRIX_ACCESS_TOKEN"),
			Rooms:       environment.StringSliceOr("MATRIX_ROOMS", nil),
		},
		Host: host.Config{
			Info: module.HostInfo{
				Prefix:     environment.StringOr("SHIORI_COMMAND_PREFIX", "!"),
				TopCommand: environment.StringOr("SHIORI_TOP_COMMAND", "shiori"),
			},
			MessageLimit:    environment.IntOr("SHIORI_MESSAGE_LIMIT", format.DefaultLimit),
			DispatchTimeout: environment.DurationOr("SHIORI_DISPATCH_TIMEOUT", 10*time.Second),
			RateLimit:       environment.IntOr("SHIORI_RATE_LIMIT", host.DefaultRateLimit),
		},
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	mods, err := LoadModulesFile(environment.StringOr("SHIORI_CONFIG", ""))
	if err != nil {
		return nil, err
	}
	cfg.Modules = mods
	return cfg, nil
}

// buildModules returns the enabled modules in registration order.
func buildModules(cfg ModulesConfig) []module.Module {
	var mods []module.Module
	if cfg.Pinboard.IsEnabled() {
		mods = append(mods, pinboard.New(cfg.Pinboard.Config))
	}
	return mods
}
