// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
)

// Config is the server configuration.
type Config struct {
	// Listen is the HTTP listen address. Default: ":8080"
	Listen string `yaml:"listen"`

	// DataDir is the directory for the embedded database. Empty selects the
	// in-memory backend.
	DataDir string `yaml:"data_dir"`

	// SessionKey authenticates session cookies (required).
	SessionKey string `yaml:"session_key"`

	// WebAuthn is the relying-party configuration.
	WebAuthn ceremony.Config `yaml:"webauthn"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
}

// Load reads a YAML configuration file, applies defaults, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	c.WebAuthn.SetDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SessionKey == "" {
		return fmt.Errorf("session_key is required")
	}
	return c.WebAuthn.Validate()
}
