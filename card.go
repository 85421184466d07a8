// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import "fmt"

// AgentProvider represents the service provider of an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url"`
}

// AgentCapabilities declares the optional protocol features an agent
// supports.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// AgentSkill describes a unit of capability an agent can perform.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// Validate ensures the AgentSkill is valid.
func (s AgentSkill) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("agent skill ID cannot be empty")
	}
	if s.Name == "" {
		return fmt.Errorf("agent skill name cannot be empty")
	}
	return nil
}

// AgentCard is the static capability descriptor an agent advertises at
// its discovery endpoint. Cards are read-only at runtime and loaded from
// configuration.
type AgentCard struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Version      string            `json:"version"`
	URL          string            `json:"url"`
	Provider     *AgentProvider    `json:"provider,omitempty"`
	Capabilities AgentCapabilities `json:"capabilities"`
	Skills       []AgentSkill      `json:"skills,omitempty"`

	DefaultInputModes  []string `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string `json:"defaultOutputModes,omitempty"`

	ContactEmail string            `json:"contact_email,omitempty"`
	SupportURL   string            `json:"support_url,omitempty"`
}

// Validate ensures the AgentCard is valid.
func (c AgentCard) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent card name cannot be empty")
	}
	if c.Version == "" {
		return fmt.Errorf("agent card version cannot be empty")
	}
	if c.URL == "" {
		return fmt.Errorf("agent card URL cannot be empty")
	}
	for i, skill := range c.Skills {
		if err := skill.Validate(); err != nil {
			return fmt.Errorf("agent skill at index %d is invalid: %w", i, err)
		}
	}
	return nil
}
