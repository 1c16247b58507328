// Package ollama adapts a locally-hosted Ollama inference server to the
// provider.Client contract.
//
// # Transport
//
// Chat calls POST to {base}/api/chat. Non-streaming responses arrive as a
// single JSON object; streaming responses arrive as newline-delimited JSON
// objects, one text delta per line, terminated by an object with
// "done": true. The adapter translates both into the normalized
// provider.Response / provider.StreamChunk shapes.
//
// # Model availability
//
// Local models must be present before first use. EnsureModels checks each
// required model via /api/show and pulls missing ones via /api/pull. When
// a pull of a version-tagged identifier ("llama3.1:8b") fails, the adapter
// retries once with the tag stripped ("llama3.1"); a second failure is
// fatal for that model (provider.ErrModelNotPulled) and is not retried
// again.
//
// # Usage
//
//	import _ "github.com/randalmurphal/studykit/ollama"
//
//	client, err := provider.New("ollama", provider.Config{
//	    BaseURL: "http://localhost:11434",
//	    Models:  models,
//	})
package ollama
