// Package provider defines the unified interface for LLM provider families.
//
// Each provider family (a locally-hosted inference service, a remote cloud
// API) has its own transport and streaming shape. Adapters normalize those
// into one contract so the router and the delegation engine never see
// provider-native payloads.
//
// # Usage
//
// Create a client using the registry:
//
//	client, err := provider.New("ollama", provider.Config{
//	    BaseURL: "http://localhost:11434",
//	    Models:  models,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Available Families
//
//   - "ollama": locally-hosted inference service (newline-delimited JSON streaming)
//   - "mistral": remote cloud API (server-sent-event streaming)
//
// Import github.com/randalmurphal/studykit/providers to register both.
package provider

import "context"

// Client is the unified interface implemented once per provider family.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a request and returns the full response.
	// The context controls cancellation and timeouts.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream sends a request and returns a channel of response chunks.
	// The channel is closed after the final chunk (check chunk.Done).
	// Errors during streaming are delivered via chunk.Error as the
	// terminal element. The sequence is forward-only and not restartable.
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)

	// ResolveModel returns the sampling parameters configured for the
	// model identifier, or ErrUnknownModel if this family's configuration
	// table does not contain it.
	ResolveModel(model string) (ModelParams, error)

	// Provider returns the family name (e.g. "ollama", "mistral").
	Provider() string

	// Close releases any resources held by the client.
	Close() error
}
