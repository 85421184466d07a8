// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arzani/a2a"
	"github.com/arzani/a2a/client"
	"github.com/arzani/a2a/config"
)

// Entry pairs a specialist agent's advertised card with the protocol
// client used to reach it.
type Entry struct {
	Card   a2a.AgentCard
	Client *client.Client
}

// Directory maps logical agent names to their cards and clients. Entries
// come from configuration at startup; Register exists so tests and
// embedders can swap in their own clients.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]*Entry)}
}

// NewDirectoryFromConfig builds a Directory from the configured agent
// map. Cards are synthesized from each entry; clientOpts apply to every
// constructed protocol client.
func NewDirectoryFromConfig(agents map[string]config.AgentConfig, clientOpts ...client.Option) (*Directory, error) {
	d := NewDirectory()
	for name, agent := range agents {
		c, err := client.New(agent.URL, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		if err := d.Register(name, cardFromConfig(name, agent), c); err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
	}
	return d, nil
}

func cardFromConfig(name string, agent config.AgentConfig) a2a.AgentCard {
	version := agent.Version
	if version == "" {
		version = "1.0.0"
	}

	skills := make([]a2a.AgentSkill, 0, len(agent.Skills))
	for _, skill := range agent.Skills {
		skills = append(skills, a2a.AgentSkill{
			ID:          skill.ID,
			Name:        skill.Name,
			Description: skill.Description,
			Tags:        skill.Tags,
		})
	}

	return a2a.AgentCard{
		Name:        name,
		Description: agent.Description,
		Version:     version,
		URL:         agent.URL,
		Capabilities: a2a.AgentCapabilities{
			Streaming:         agent.Streaming,
			PushNotifications: true,
		},
		Skills:             skills,
		DefaultInputModes:  agent.InputModes,
		DefaultOutputModes: agent.OutputModes,
		ContactEmail:       agent.ContactEmail,
		SupportURL:         agent.SupportURL,
	}
}

// Register adds or replaces the entry for name.
func (d *Directory) Register(name string, card a2a.AgentCard, c *client.Client) error {
	if err := card.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[name] = &Entry{Card: card, Client: c}
	return nil
}

// Resolve looks a specialist agent up by name.
func (d *Directory) Resolve(name string) (*Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.entries[name]
	if !ok {
		return nil, &a2a.AgentNotFoundError{Name: name}
	}
	return entry, nil
}

// Names returns the registered agent names, sorted.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
