// Package studykit is the core of a multi-agent study-chat service.
//
// studykit routes user chat turns to one or more specialist agents, each
// backed by a large-language-model provider. Subpackages can be imported
// à la carte:
//
//   - provider: unified adapter contract, wire types, and provider registry
//   - ollama: local inference adapter (HTTP, newline-delimited streaming)
//   - mistral: remote cloud adapter (HTTP, server-sent-event streaming)
//   - budget: token admission control (per-minute window, lifetime ceiling)
//   - router: agent → model → provider dispatch
//   - delegate: turn-taking engine with swappable specialist classifiers
//   - agent: read-only agent profile registry
//   - config: agent-library document loading (YAML/TOML/JSON)
//   - session: append-only conversation state (in-memory or Redis)
//   - audit: chat transcript logging (SQLite or JSONL)
//
// # Quick Start
//
// Build a router over configured providers and delegate a message:
//
//	lib, _ := config.Load("agent_library.yaml")
//	reg, _ := agent.NewRegistry(lib.Agents)
//	rt, _ := router.New(reg, clients, lib.Models)
//	eng := delegate.New(reg, rt)
//	reply, err := eng.Handle(ctx, "Where is Mount Sinai?", state)
//
// # Design Philosophy
//
//   - One adapter per provider family behind a fixed interface
//   - Explicit admission control around every outbound model call
//   - Interfaces for extensibility, concrete types for simplicity
//   - Sensible defaults with full configurability
package studykit
