// Package router dispatches chat calls from agent identities to the
// provider family that owns the agent's configured model.
//
// A model identifier belongs to exactly one family's configuration table;
// the router builds that index once at construction and rejects ambiguous
// or unclaimed models. A family that appears in the configuration but has
// no constructed client (typically a missing credential) fails requests
// with provider.ErrProviderUnavailable before any network access.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/studykit/agent"
	"github.com/randalmurphal/studykit/provider"
)

// Router resolves agent → model → provider family and exposes one uniform
// chat entry point in blocking and streaming variants.
type Router struct {
	agents  *agent.Registry
	clients map[string]provider.Client
	owner   map[string]string // model identifier → family
	log     *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the routing diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.log = l
	}
}

// New builds a router over the given clients and the full
// model-configuration table (family → model → params). The table may
// name families with no client; requests for their models fail with
// provider.ErrProviderUnavailable. A model claimed by two families is a
// construction error.
func New(agents *agent.Registry, clients map[string]provider.Client, models map[string]map[string]provider.ModelParams, opts ...Option) (*Router, error) {
	r := &Router{
		agents:  agents,
		clients: clients,
		owner:   make(map[string]string),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for family, table := range models {
		for model := range table {
			if prev, dup := r.owner[model]; dup {
				return nil, fmt.Errorf("%w: %s claimed by both %s and %s",
					provider.ErrUnknownModel, model, prev, family)
			}
			r.owner[model] = family
		}
	}
	return r, nil
}

// resolve maps an agent name to the client and model that serve it.
func (r *Router) resolve(agentName string) (provider.Client, string, error) {
	profile, err := r.agents.Lookup(agentName)
	if err != nil {
		return nil, "", err
	}
	family, ok := r.owner[profile.Model]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s (agent %s)", provider.ErrUnknownModel, profile.Model, agentName)
	}
	client, ok := r.clients[family]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s is not configured (agent %s, model %s)",
			provider.ErrProviderUnavailable, family, agentName, profile.Model)
	}
	return client, profile.Model, nil
}

// Complete sends the turn sequence to the agent's model and returns the
// normalized assistant turn. Provider errors are not retried here.
func (r *Router) Complete(ctx context.Context, agentName string, msgs []provider.Message) (provider.Message, error) {
	client, model, err := r.resolve(agentName)
	if err != nil {
		return provider.Message{}, err
	}

	r.log.Debug("routing chat", "agent", agentName, "model", model, "provider", client.Provider())
	resp, err := client.Complete(ctx, provider.Request{Model: model, Messages: msgs})
	if err != nil {
		return provider.Message{}, err
	}
	return provider.Message{Role: provider.RoleAssistant, Content: resp.Content}, nil
}

// Stream sends the turn sequence to the agent's model and returns the
// normalized chunk sequence.
func (r *Router) Stream(ctx context.Context, agentName string, msgs []provider.Message) (<-chan provider.StreamChunk, error) {
	client, model, err := r.resolve(agentName)
	if err != nil {
		return nil, err
	}

	r.log.Debug("routing stream", "agent", agentName, "model", model, "provider", client.Provider())
	return client.Stream(ctx, provider.Request{Model: model, Messages: msgs})
}

// Agents exposes the read-only agent registry behind this router.
func (r *Router) Agents() *agent.Registry {
	return r.agents
}
