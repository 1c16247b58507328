// Package mistral adapts the Mistral cloud chat API to the
// provider.Client contract.
//
// # Transport
//
// Chat calls POST to {base}/v1/chat/completions with a Bearer API key.
// Non-streaming responses carry the full text in choices[0].message;
// streaming responses are server-sent events, one delta per "data:" event,
// terminated by the [DONE] sentinel.
//
// # Message conversion
//
// The backend has no native system-role slot, so a leading system turn is
// folded into the content of the first user turn, and consecutive user
// turns are merged into one, preserving original order.
//
// # Credentials
//
// The factory fails with provider.ErrProviderUnavailable when no API key
// is supplied; callers are expected to leave the family unconfigured
// rather than crash at startup.
package mistral
