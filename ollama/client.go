package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/randalmurphal/studykit/provider"
)

// DefaultBaseURL is the standard local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

// maxLineSize caps a single streamed JSON line (1 MB). The default
// bufio.Scanner limit of 64 KiB is too small for long completions.
const maxLineSize = 1 * 1024 * 1024

// Client implements provider.Client against an Ollama server.
type Client struct {
	base    string
	models  map[string]provider.ModelParams
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// New creates an Ollama client from cfg. No network access happens here;
// call EnsureModels before first use to verify model availability.
func New(cfg provider.Config) (*Client, error) {
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

// Wire types for the /api/chat endpoint.

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []provider.Message `json:"messages"`
	Options  chatOptions        `json:"options"`
	Stream   bool               `json:"stream"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message provider.Message `json:"message"`
	Done    bool             `json:"done"`
	Error   string           `json:"error,omitempty"`
}

func (c *Client) buildChatRequest(req provider.Request, stream bool) (*chatRequest, error) {
	params, err := c.ResolveModel(req.Model)
	if err != nil {
		return nil, err
	}
	return &chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Options: chatOptions{
			Temperature: params.Temperature,
			TopP:        params.TopP,
			NumPredict:  req.MaxTokens,
		},
		Stream: stream,
	}, nil
}

// Complete implements provider.Client.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	body, err := c.buildChatRequest(req, false)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, provider.NewError(Name, "chat", err, true)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, provider.NewError(Name, "chat", fmt.Errorf("decode response: %w", err), false)
	}
	if out.Error != "" {
		return nil, provider.NewError(Name, "chat", fmt.Errorf("server error: %s", out.Error), false)
	}
	return &provider.Response{Content: out.Message.Content, Model: req.Model}, nil
}

// Stream implements provider.Client. Chunks are produced lazily from the
// newline-delimited response body; abandoning the context closes the
// transport promptly.
func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	body, err := c.buildChatRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, provider.NewError(Name, "stream", err, true)
	}

	chunks := make(chan provider.StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				send(ctx, chunks, provider.StreamChunk{
					Done:  true,
					Error: provider.NewError(Name, "stream", fmt.Errorf("decode chunk: %w", err), false),
				})
				return
			}
			if chunk.Error != "" {
				send(ctx, chunks, provider.StreamChunk{
					Done:  true,
					Error: provider.NewError(Name, "stream", fmt.Errorf("server error: %s", chunk.Error), false),
				})
				return
			}
			if !send(ctx, chunks, provider.StreamChunk{Content: chunk.Message.Content, Done: chunk.Done}) {
				return
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, chunks, provider.StreamChunk{
				Done:  true,
				Error: provider.NewError(Name, "stream", err, true),
			})
			return
		}
		// Body ended without a done marker; close the sequence cleanly.
		send(ctx, chunks, provider.StreamChunk{Done: true})
	}()
	return chunks, nil
}

// post issues a JSON POST and returns the response with its body open.
// Non-2xx statuses are drained, closed, and returned as errors.
func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode, body: string(msg)}
	}
	return resp, nil
}

// statusError carries a non-2xx HTTP status so callers can branch on 404
// during model availability checks.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// send delivers a chunk unless ctx is done first. Returns false when the
// consumer has gone away.
func send(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
