// Package agent holds the read-only registry of agent profiles.
//
// A Profile is a named persona: a fixed system instruction plus an
// assigned model identifier. Profiles are loaded once at startup and
// immutable afterwards, so the Registry is safe for unsynchronized
// concurrent reads.
package agent

import (
	"fmt"

	"github.com/randalmurphal/studykit/provider"
)

// Profile is one agent identity. Immutable after load.
type Profile struct {
	// Name uniquely identifies the agent.
	Name string `json:"name" yaml:"name" toml:"name"`

	// SystemMessage is the agent's fixed system instruction.
	SystemMessage string `json:"system_message" yaml:"system_message" toml:"system_message"`

	// Description is free text shown to coordinators and operators.
	Description string `json:"description" yaml:"description" toml:"description"`

	// Model is the identifier of the model this agent is assigned to.
	Model string `json:"model" yaml:"model" toml:"model"`
}

// Registry is an immutable, name-keyed view over a set of profiles.
type Registry struct {
	byName map[string]Profile
	order  []string
}

// NewRegistry builds a registry from profiles, preserving load order.
// Duplicate or empty names are construction errors.
func NewRegistry(profiles []Profile) (*Registry, error) {
	r := &Registry{byName: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("agent profile with empty name (model %q)", p.Model)
		}
		if _, exists := r.byName[p.Name]; exists {
			return nil, fmt.Errorf("duplicate agent name %q", p.Name)
		}
		r.byName[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	return r, nil
}

// Lookup returns the profile for name, or provider.ErrUnknownAgent.
func (r *Registry) Lookup(name string) (Profile, error) {
	p, ok := r.byName[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", provider.ErrUnknownAgent, name)
	}
	return p, nil
}

// Has reports whether an agent with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns all agent names in load order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Profiles returns all profiles in load order.
func (r *Registry) Profiles() []Profile {
	profiles := make([]Profile, 0, len(r.order))
	for _, name := range r.order {
		profiles = append(profiles, r.byName[name])
	}
	return profiles
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.order)
}
