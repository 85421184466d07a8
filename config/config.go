// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads orchestrator configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the file and environment leave a field unset.
const (
	DefaultListenAddr       = ":8090"
	DefaultOpsAddr          = ":9090"
	DefaultDatabasePath     = "a2a_tasks.db"
	DefaultTokenTTL         = 24 * time.Hour
	DefaultWebhookTimeout   = 10 * time.Second
	DefaultStreamGraceDelay = time.Second
	DefaultIdleTimeout      = 2 * time.Minute
)

// Config is the root orchestrator configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr" env:"A2A_LISTEN_ADDR"`
	OpsAddr    string `yaml:"ops_addr" env:"A2A_OPS_ADDR"`

	Auth     AuthConfig     `yaml:"auth"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DatabaseConfig `yaml:"database"`

	// Agents maps a logical specialist name to its endpoint and card.
	Agents map[string]AgentConfig `yaml:"agents"`
}

// AuthConfig configures inbound bearer-token verification and the
// outbound credential attached to protocol client calls.
type AuthConfig struct {
	// Secret signs and verifies inbound bearer tokens.
	Secret string `yaml:"secret" env:"A2A_AUTH_SECRET"`

	// Issuer is the expected issuer claim. Empty disables the check.
	Issuer string `yaml:"issuer" env:"A2A_AUTH_ISSUER"`

	// TokenTTL bounds the lifetime of issued tokens.
	TokenTTL time.Duration `yaml:"token_ttl" env:"A2A_AUTH_TOKEN_TTL"`

	// OutboundToken is attached as a bearer credential to protocol
	// client calls when set.
	OutboundToken string `yaml:"outbound_token" env:"A2A_AUTH_OUTBOUND_TOKEN"`

	// DevBypass skips inbound verification. Development only: loading
	// fails when it is set in a production environment.
	DevBypass bool `yaml:"dev_bypass" env:"A2A_AUTH_DEV_BYPASS"`
}

// WebhookConfig configures webhook dispatch.
type WebhookConfig struct {
	// DefaultSecret signs notifications for registrations that did not
	// supply their own secret.
	DefaultSecret string `yaml:"default_secret" env:"A2A_WEBHOOK_SECRET"`

	// Timeout bounds each delivery attempt.
	Timeout time.Duration `yaml:"timeout" env:"A2A_WEBHOOK_TIMEOUT"`
}

// StreamConfig configures the stream broker.
type StreamConfig struct {
	// GraceDelay is how long a channel stays open after its task
	// reaches a terminal state, so final events can drain.
	GraceDelay time.Duration `yaml:"grace_delay" env:"A2A_STREAM_GRACE_DELAY"`

	// IdleTimeout force-fails a streaming task when no upstream event
	// arrives within the window.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"A2A_STREAM_IDLE_TIMEOUT"`
}

// DatabaseConfig configures the durable task side-store.
type DatabaseConfig struct {
	// Path is the sqlite database file. Empty disables persistence.
	Path string `yaml:"path" env:"A2A_DATABASE_PATH"`
}

// AgentConfig describes one specialist agent entry in the directory.
type AgentConfig struct {
	URL          string   `yaml:"url"`
	Description  string   `yaml:"description"`
	Version      string   `yaml:"version"`
	Streaming    bool     `yaml:"streaming"`
	ContactEmail string   `yaml:"contact_email"`
	SupportURL   string   `yaml:"support_url"`
	Skills       []Skill  `yaml:"skills"`
	InputModes   []string `yaml:"input_modes"`
	OutputModes  []string `yaml:"output_modes"`
}

// Skill describes one advertised agent skill.
type Skill struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.OpsAddr == "" {
		c.OpsAddr = DefaultOpsAddr
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = DefaultWebhookTimeout
	}
	if c.Stream.GraceDelay <= 0 {
		c.Stream.GraceDelay = DefaultStreamGraceDelay
	}
	if c.Stream.IdleTimeout <= 0 {
		c.Stream.IdleTimeout = DefaultIdleTimeout
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Auth.DevBypass && os.Getenv("ARZANI_ENV") == "production" {
		return fmt.Errorf("auth.dev_bypass must not be enabled in a production environment")
	}
	if !c.Auth.DevBypass && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required unless auth.dev_bypass is set")
	}
	for name, agent := range c.Agents {
		if agent.URL == "" {
			return fmt.Errorf("agent %q: url is required", name)
		}
	}
	return nil
}
