package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/randalmurphal/studykit/provider"
)

// DefaultBaseURL is the Mistral API endpoint root.
const DefaultBaseURL = "https://api.mistral.ai"

// availableModels lists the model identifiers the API currently serves.
// Configuring a model outside this list is a construction error, so a
// typo fails at startup instead of on the first request.
var availableModels = map[string]bool{
	"mistral-small-2409": true, // current mistral-small-latest
	"mistral-large-2411": true, // current mistral-large-latest
	"open-mistral-nemo":  true, // research model
	"open-mixtral-8x7b":  true, // legacy model
	"ministral-8b-2410":  true, // edge model
	"ministral-3b-2410":  true, // edge model
}

// Client implements provider.Client against the Mistral chat API.
type Client struct {
	base    string
	apiKey  string
	models  map[string]provider.ModelParams
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Mistral client from cfg. An empty API key means the
// family is unconfigured: construction fails with
// provider.ErrProviderUnavailable and no network access is attempted.
func New(cfg provider.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, provider.NewError(Name, "configure",
			fmt.Errorf("%w: missing API key", provider.ErrProviderUnavailable), false)
	}
	for model := range cfg.Models {
		if !availableModels[model] {
			return nil, provider.NewError(Name, "configure",
				fmt.Errorf("model %q is not available through the Mistral API", model), false)
		}
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = provider.DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		base:    base,
		apiKey:  cfg.APIKey,
		models:  cfg.Models,
		http:    httpClient,
		timeout: timeout,
		log:     cfg.Log(),
	}, nil
}

// Provider implements provider.Client.
func (c *Client) Provider() string { return Name }

// Close implements provider.Client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// ResolveModel implements provider.Client.
func (c *Client) ResolveModel(model string) (provider.ModelParams, error) {
	params, ok := c.models[model]
	if !ok {
		return provider.ModelParams{}, fmt.Errorf("%w: %s", provider.ErrUnknownModel, model)
	}
	return params, nil
}

// Wire types for /v1/chat/completions.

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// convertMessages translates the normalized turn sequence into the wire
// shape: a leading system turn is folded into the first user turn, and
// consecutive user turns merge into one. Original order is preserved.
func convertMessages(msgs []provider.Message) []wireMessage {
	var system string
	if len(msgs) > 0 && msgs[0].Role == provider.RoleSystem {
		system = msgs[0].Content
	}

	var out []wireMessage
	systemApplied := system == ""
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleSystem:
			continue
		case provider.RoleUser:
			if len(out) > 0 && out[len(out)-1].Role == string(provider.RoleUser) {
				out[len(out)-1].Content += "\n" + m.Content
				continue
			}
			content := m.Content
			if !systemApplied {
				content = system + "\n\nUser: " + content
				systemApplied = true
			}
			out = append(out, wireMessage{Role: string(provider.RoleUser), Content: content})
		default:
			out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

func (c *Client) buildRequest(req provider.Request, stream bool) (*completionRequest, error) {
	params, err := c.ResolveModel(req.Model)
	if err != nil {
		return nil, err
	}
	return &completionRequest{
		Model:       req.Model,
		Messages:    convertMessages(req.Messages),
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}, nil
}

// Complete implements provider.Client.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	body, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, body, false)
	if err != nil {
		return nil, provider.NewError(Name, "chat", err, true)
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, provider.NewError(Name, "chat", fmt.Errorf("decode response: %w", err), false)
	}
	if len(out.Choices) == 0 {
		return nil, provider.NewError(Name, "chat", errors.New("response carried no choices"), false)
	}
	return &provider.Response{Content: out.Choices[0].Message.Content, Model: req.Model}, nil
}

// Stream implements provider.Client. Chunks are produced lazily from the
// SSE body; abandoning the context closes the transport promptly.
func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	body, err := c.buildRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, body, true)
	if err != nil {
		return nil, provider.NewError(Name, "stream", err, true)
	}

	chunks := make(chan provider.StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		scanner := newSSEScanner(resp.Body)
		for {
			payload, err := scanner.Next()
			if errors.Is(err, io.EOF) {
				send(ctx, chunks, provider.StreamChunk{Done: true})
				return
			}
			if err != nil {
				send(ctx, chunks, provider.StreamChunk{
					Done:  true,
					Error: provider.NewError(Name, "stream", err, true),
				})
				return
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				send(ctx, chunks, provider.StreamChunk{
					Done:  true,
					Error: provider.NewError(Name, "stream", fmt.Errorf("decode event: %w", err), false),
				})
				return
			}
			if len(event.Choices) == 0 || event.Choices[0].Delta.Content == nil {
				continue
			}
			if !send(ctx, chunks, provider.StreamChunk{Content: *event.Choices[0].Delta.Content}) {
				return
			}
		}
	}()
	return chunks, nil
}

// post issues the completion request. Non-2xx statuses are drained,
// closed, and returned as errors; the raw body stays in the error for the
// internal log, never for end users.
func (c *Client) post(ctx context.Context, body any, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(msg))
	}
	return resp, nil
}

// send delivers a chunk unless ctx is done first.
func send(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
