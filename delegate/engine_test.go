package delegate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/studykit/agent"
	"github.com/randalmurphal/studykit/provider"
	"github.com/randalmurphal/studykit/router"
	"github.com/randalmurphal/studykit/session"
)

// scriptedClient answers by matching markers embedded in each agent's
// system instruction. The coordinator is recognized by its delegation
// directive.
type scriptedClient struct {
	coordReply string
	answers    map[string]string
	failures   map[string]error
	requests   []provider.Request
}

func (c *scriptedClient) resolve(req provider.Request) (string, error) {
	c.requests = append(c.requests, req)
	sys := req.Messages[0].Content
	for marker, err := range c.failures {
		if strings.Contains(sys, marker) {
			return "", err
		}
	}
	if strings.Contains(sys, "ONLY to determine") {
		return c.coordReply, nil
	}
	for marker, text := range c.answers {
		if strings.Contains(sys, marker) {
			return text, nil
		}
	}
	return "", fmt.Errorf("unscripted system instruction: %s", sys)
}

func (c *scriptedClient) Complete(_ context.Context, req provider.Request) (*provider.Response, error) {
	text, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	return &provider.Response{Content: text, Model: req.Model}, nil
}

func (c *scriptedClient) Stream(_ context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	text, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	ch := make(chan provider.StreamChunk, 3)
	half := len(text) / 2
	ch <- provider.StreamChunk{Content: text[:half]}
	ch <- provider.StreamChunk{Content: text[half:]}
	ch <- provider.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (c *scriptedClient) ResolveModel(_ string) (provider.ModelParams, error) {
	return provider.ModelParams{}, nil
}

func (c *scriptedClient) Provider() string { return "test" }
func (c *scriptedClient) Close() error     { return nil }

func defaultAnswers() map[string]string {
	return map[string]string{
		"THEO-SYS": "Grace abounds through the whole canon.",
		"GEO-SYS":  "The land lies east of the great sea.",
		"LIT-SYS":  "The narrative turns on a chiasmus.",
	}
}

func testEngine(t *testing.T, client *scriptedClient, opts ...Option) *Engine {
	t.Helper()
	reg, err := agent.NewRegistry([]agent.Profile{
		{Name: "Master Agent", SystemMessage: "COORD-SYS", Model: "test-model"},
		{Name: "Biblical Theologian", SystemMessage: "THEO-SYS", Model: "test-model"},
		{Name: "Geographical Strategist", SystemMessage: "GEO-SYS", Model: "test-model"},
		{Name: "Literary Analyst", SystemMessage: "LIT-SYS", Model: "test-model"},
	})
	require.NoError(t, err)

	rt, err := router.New(reg,
		map[string]provider.Client{"test": client},
		map[string]map[string]provider.ModelParams{"test": {"test-model": {}}})
	require.NoError(t, err)

	return New(reg, rt, opts...)
}

func TestHandle_CoordinatorSelection(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Geographical Strategist and the Literary Analyst.",
		answers:    defaultAnswers(),
	}
	engine := testEngine(t, client)
	state := session.NewMemory()

	reply, err := engine.Handle(context.Background(), "Tell me about the setting of Exodus.", state)
	require.NoError(t, err)

	want := "**Geographical Strategist**: The land lies east of the great sea." +
		"\n\n**Literary Analyst**: The narrative turns on a chiasmus."
	assert.Equal(t, want, reply)

	history, err := state.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2, "one user turn and one assistant turn")
	assert.Equal(t, provider.RoleUser, history[0].Role)
	assert.Equal(t, "Tell me about the setting of Exodus.", history[0].Content)
	assert.Equal(t, provider.RoleAssistant, history[1].Role)
	assert.Equal(t, want, history[1].Content)
}

func TestHandle_KeywordFallback(t *testing.T) {
	client := &scriptedClient{
		coordReply: "I am not sure who should take this.",
		answers:    defaultAnswers(),
	}
	engine := testEngine(t, client)

	reply, err := engine.Handle(context.Background(), "Where is the land of Canaan located?", session.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, "**Geographical Strategist**: The land lies east of the great sea.", reply)
}

func TestHandle_DefaultFallback(t *testing.T) {
	client := &scriptedClient{
		coordReply: "No delegation needed.",
		answers:    defaultAnswers(),
	}
	engine := testEngine(t, client)

	reply, err := engine.Handle(context.Background(), "Hello, friend!", session.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, "**Biblical Theologian**: Grace abounds through the whole canon.", reply)
}

func TestHandle_CoordinatorFailureDegradesToKeywords(t *testing.T) {
	client := &scriptedClient{
		answers:  defaultAnswers(),
		failures: map[string]error{},
	}
	// The coordinator marker is its directive, so fail it via COORD-SYS.
	client.failures["COORD-SYS"] = fmt.Errorf("coordinator offline")
	client.coordReply = "never used"

	engine := testEngine(t, client)

	reply, err := engine.Handle(context.Background(), "Where was Jericho?", session.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, "**Geographical Strategist**: The land lies east of the great sea.", reply)
}

func TestHandle_PartialFailureKeepsOtherSections(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Geographical Strategist and the Literary Analyst.",
		answers:    defaultAnswers(),
		failures:   map[string]error{"GEO-SYS": fmt.Errorf("model crashed")},
	}
	engine := testEngine(t, client)
	state := session.NewMemory()

	reply, err := engine.Handle(context.Background(), "Describe the setting.", state)
	require.NoError(t, err, "one surviving specialist keeps the turn alive")

	want := "**Geographical Strategist**: (unavailable)" +
		"\n\n**Literary Analyst**: The narrative turns on a chiasmus."
	assert.Equal(t, want, reply)
}

func TestHandle_AllSpecialistsFail(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Geographical Strategist.",
		answers:    defaultAnswers(),
		failures:   map[string]error{"GEO-SYS": fmt.Errorf("model crashed")},
	}
	engine := testEngine(t, client)
	state := session.NewMemory()

	_, err := engine.Handle(context.Background(), "Describe the setting.", state)
	require.Error(t, err)

	history, herr := state.History(context.Background())
	require.NoError(t, herr)
	assert.Empty(t, history, "a failed turn appends nothing")
}

func TestHandle_QuotaErrorAborts(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Geographical Strategist and the Literary Analyst.",
		answers:    defaultAnswers(),
		failures: map[string]error{
			"GEO-SYS": provider.NewError("test", "chat", provider.ErrQuotaExceeded, false),
		},
	}
	engine := testEngine(t, client)
	state := session.NewMemory()

	_, err := engine.Handle(context.Background(), "Describe the setting.", state)
	require.ErrorIs(t, err, provider.ErrQuotaExceeded)

	history, herr := state.History(context.Background())
	require.NoError(t, herr)
	assert.Empty(t, history)
}

func TestHandleStream_MatchesHandle(t *testing.T) {
	newClient := func() *scriptedClient {
		return &scriptedClient{
			coordReply: "Delegate to the Geographical Strategist and the Literary Analyst.",
			answers:    defaultAnswers(),
		}
	}

	reply, err := testEngine(t, newClient()).Handle(context.Background(), "Describe the setting.", session.NewMemory())
	require.NoError(t, err)

	chunks, err := testEngine(t, newClient()).HandleStream(context.Background(), "Describe the setting.", session.NewMemory())
	require.NoError(t, err)

	var streamed strings.Builder
	var done bool
	for chunk := range chunks {
		require.NoError(t, chunk.Error)
		streamed.WriteString(chunk.Content)
		done = chunk.Done
	}
	assert.True(t, done)
	assert.Equal(t, reply, streamed.String(), "drained stream equals the blocking aggregate")
}

func TestHandleStream_AppendsOnceAfterDrain(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Literary Analyst.",
		answers:    defaultAnswers(),
	}
	engine := testEngine(t, client)
	state := session.NewMemory()

	chunks, err := engine.HandleStream(context.Background(), "Analyze the structure.", state)
	require.NoError(t, err)

	var streamed strings.Builder
	for chunk := range chunks {
		require.NoError(t, chunk.Error)
		streamed.WriteString(chunk.Content)
	}

	history, err := state.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, streamed.String(), history[1].Content)
}

func TestHandleStream_AbandonedAppendsNothing(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Geographical Strategist and the Literary Analyst.",
		answers:    defaultAnswers(),
	}
	engine := testEngine(t, client)
	state := session.NewMemory()

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := engine.HandleStream(ctx, "Describe the setting.", state)
	require.NoError(t, err)

	// Take one chunk, cancel, and stop reading entirely. The producer
	// blocks on its next send, sees the dead context, and exits.
	<-chunks
	cancel()
	time.Sleep(100 * time.Millisecond)

	select {
	case _, open := <-chunks:
		assert.False(t, open, "channel should be closed with nothing pending")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not shut down after cancellation")
	}

	history, herr := state.History(context.Background())
	require.NoError(t, herr)
	assert.Empty(t, history, "an abandoned stream must not touch the session")
}

func TestHandleStream_PartialFailure(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Geographical Strategist and the Literary Analyst.",
		answers:    defaultAnswers(),
		failures:   map[string]error{"GEO-SYS": fmt.Errorf("model crashed")},
	}
	engine := testEngine(t, client)

	chunks, err := engine.HandleStream(context.Background(), "Describe the setting.", session.NewMemory())
	require.NoError(t, err)

	var streamed strings.Builder
	for chunk := range chunks {
		require.NoError(t, chunk.Error)
		streamed.WriteString(chunk.Content)
	}
	want := "**Geographical Strategist**: (unavailable)" +
		"\n\n**Literary Analyst**: The narrative turns on a chiasmus."
	assert.Equal(t, want, streamed.String())
}

func TestHandleStream_QuotaErrorAborts(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Geographical Strategist and the Literary Analyst.",
		answers:    defaultAnswers(),
		failures: map[string]error{
			"GEO-SYS": provider.NewError("test", "stream", provider.ErrQuotaExceeded, false),
		},
	}
	engine := testEngine(t, client)
	state := session.NewMemory()

	chunks, err := engine.HandleStream(context.Background(), "Describe the setting.", state)
	require.NoError(t, err)

	var last provider.StreamChunk
	for chunk := range chunks {
		last = chunk
	}
	assert.True(t, last.Done)
	require.ErrorIs(t, last.Error, provider.ErrQuotaExceeded, "fatal errors must surface, not degrade")

	history, herr := state.History(context.Background())
	require.NoError(t, herr)
	assert.Empty(t, history, "an aborted turn appends nothing")
}

func TestHandleStream_AllFailCarriesCause(t *testing.T) {
	errDown := errors.New("transport down")
	client := &scriptedClient{
		coordReply: "Delegate to the Geographical Strategist and the Literary Analyst.",
		answers:    defaultAnswers(),
		failures:   map[string]error{"GEO-SYS": errDown, "LIT-SYS": errDown},
	}
	engine := testEngine(t, client)
	state := session.NewMemory()

	chunks, err := engine.HandleStream(context.Background(), "Describe the setting.", state)
	require.NoError(t, err)

	var last provider.StreamChunk
	for chunk := range chunks {
		last = chunk
	}
	assert.True(t, last.Done)
	require.ErrorIs(t, last.Error, errDown, "the terminal error keeps the underlying cause")

	history, herr := state.History(context.Background())
	require.NoError(t, herr)
	assert.Empty(t, history)
}

func TestWithResponseTokens_AdjustsDirective(t *testing.T) {
	client := &scriptedClient{
		coordReply: "Delegate to the Literary Analyst.",
		answers:    defaultAnswers(),
	}
	engine := testEngine(t, client)

	_, err := engine.Handle(context.Background(), "Analyze the structure.", session.NewMemory(),
		WithResponseTokens(120))
	require.NoError(t, err)

	// Second request is the specialist call; its system turn carries the
	// per-turn length directive.
	require.Len(t, client.requests, 2)
	sys := client.requests[1].Messages[0].Content
	assert.Contains(t, sys, "120 tokens")
	assert.NotContains(t, sys, "500 tokens")
}
