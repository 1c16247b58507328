package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/studykit/provider"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(provider.Config{
		BaseURL: srv.URL,
		Models: map[string]provider.ModelParams{
			"llama3.1:8b": {Temperature: 0.7, TopP: 0.9},
		},
	})
	require.NoError(t, err)
	return c
}

func TestComplete(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1:8b", req.Model)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.7, req.Options.Temperature, 1e-9)
		assert.Equal(t, 500, req.Options.NumPredict)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, provider.RoleSystem, req.Messages[0].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Message: provider.NewMessage(provider.RoleAssistant, "In the beginning..."),
			Done:    true,
		})
	}))

	resp, err := client.Complete(context.Background(), provider.Request{
		Model: "llama3.1:8b",
		Messages: []provider.Message{
			provider.NewMessage(provider.RoleSystem, "You are a theologian"),
			provider.NewMessage(provider.RoleUser, "Summarize Genesis 1"),
		},
		MaxTokens: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, "In the beginning...", resp.Content)
	assert.Equal(t, "llama3.1:8b", resp.Model)
}

func TestComplete_ServerError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Error: "model overloaded"})
	}))

	_, err := client.Complete(context.Background(), provider.Request{
		Model:    "llama3.1:8b",
		Messages: []provider.Message{provider.NewMessage(provider.RoleUser, "hi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestComplete_HTTPStatusError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.Complete(context.Background(), provider.Request{
		Model:    "llama3.1:8b",
		Messages: []provider.Message{provider.NewMessage(provider.RoleUser, "hi")},
	})
	require.Error(t, err)
	assert.True(t, provider.IsRetryable(err))
}

func TestStream(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		for _, text := range []string{"In ", "the ", "beginning"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", text)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))

	chunks, err := client.Stream(context.Background(), provider.Request{
		Model:    "llama3.1:8b",
		Messages: []provider.Message{provider.NewMessage(provider.RoleUser, "Summarize Genesis 1")},
	})
	require.NoError(t, err)

	var got string
	var done bool
	for chunk := range chunks {
		require.NoError(t, chunk.Error)
		got += chunk.Content
		done = chunk.Done
	}
	assert.Equal(t, "In the beginning", got)
	assert.True(t, done, "stream must end with a done marker")
}

func TestStream_ServerErrorChunk(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"partial"},"done":false}`)
		fmt.Fprintln(w, `{"error":"out of memory"}`)
	}))

	chunks, err := client.Stream(context.Background(), provider.Request{
		Model:    "llama3.1:8b",
		Messages: []provider.Message{provider.NewMessage(provider.RoleUser, "hi")},
	})
	require.NoError(t, err)

	var last provider.StreamChunk
	for chunk := range chunks {
		last = chunk
	}
	assert.True(t, last.Done)
	require.Error(t, last.Error)
	assert.Contains(t, last.Error.Error(), "out of memory")
}

func TestStream_BodyEndsWithoutDone(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"cut short"},"done":false}`)
	}))

	chunks, err := client.Stream(context.Background(), provider.Request{
		Model:    "llama3.1:8b",
		Messages: []provider.Message{provider.NewMessage(provider.RoleUser, "hi")},
	})
	require.NoError(t, err)

	var last provider.StreamChunk
	var got string
	for chunk := range chunks {
		require.NoError(t, chunk.Error)
		got += chunk.Content
		last = chunk
	}
	assert.Equal(t, "cut short", got)
	assert.True(t, last.Done, "truncated body still closes the sequence cleanly")
}

func TestResolveModel(t *testing.T) {
	client := testClient(t, http.NotFoundHandler())

	params, err := client.ResolveModel("llama3.1:8b")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, params.TopP, 1e-9)

	_, err = client.ResolveModel("unknown-model")
	assert.ErrorIs(t, err, provider.ErrUnknownModel)
}

func TestComplete_UnknownModel(t *testing.T) {
	client := testClient(t, http.NotFoundHandler())

	_, err := client.Complete(context.Background(), provider.Request{
		Model:    "unknown-model",
		Messages: []provider.Message{provider.NewMessage(provider.RoleUser, "hi")},
	})
	assert.ErrorIs(t, err, provider.ErrUnknownModel)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(provider.Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.base)
	assert.Equal(t, Name, c.Provider())
	assert.NoError(t, c.Close())
}
