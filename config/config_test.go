// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":8181"
auth:
  secret: test-secret
  issuer: arzani
webhook:
  default_secret: hook-secret
stream:
  grace_delay: 2s
agents:
  broker:
    url: http://localhost:9001
    description: Business broker agent
    version: "1.0.0"
    streaming: true
    skills:
      - id: valuation
        name: Business valuation
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":8181" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8181")
	}
	if cfg.Stream.GraceDelay != 2*time.Second {
		t.Errorf("GraceDelay = %v, want 2s", cfg.Stream.GraceDelay)
	}
	if cfg.Stream.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want default %v", cfg.Stream.IdleTimeout, DefaultIdleTimeout)
	}

	agent, ok := cfg.Agents["broker"]
	if !ok {
		t.Fatal("expected broker agent entry")
	}
	if agent.URL != "http://localhost:9001" {
		t.Errorf("agent URL = %q", agent.URL)
	}
	if !agent.Streaming {
		t.Error("agent streaming should be true")
	}
	if len(agent.Skills) != 1 || agent.Skills[0].ID != "valuation" {
		t.Errorf("agent skills = %+v", agent.Skills)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":8181"
auth:
  secret: file-secret
`)

	t.Setenv("A2A_LISTEN_ADDR", ":9999")
	t.Setenv("A2A_AUTH_SECRET", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want env override :9999", cfg.ListenAddr)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Errorf("Auth.Secret = %q, want env override", cfg.Auth.Secret)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	path := writeConfig(t, `listen_addr: ":8181"`)

	if _, err := Load(path); err == nil {
		t.Error("expected error when auth.secret missing without dev_bypass")
	}
}

func TestLoadDevBypassInProduction(t *testing.T) {
	path := writeConfig(t, `
auth:
  dev_bypass: true
`)

	t.Setenv("ARZANI_ENV", "production")
	if _, err := Load(path); err == nil {
		t.Error("expected error for dev_bypass in production")
	}
}

func TestLoadAgentRequiresURL(t *testing.T) {
	path := writeConfig(t, `
auth:
  secret: s
agents:
  broker:
    description: missing url
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for agent without url")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
