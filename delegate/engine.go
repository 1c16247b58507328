package delegate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/studykit/agent"
	"github.com/randalmurphal/studykit/audit"
	"github.com/randalmurphal/studykit/provider"
	"github.com/randalmurphal/studykit/router"
	"github.com/randalmurphal/studykit/session"
)

// Defaults for the delegation engine.
const (
	// DefaultCoordinator is the agent whose output selects specialists.
	// Its reply is never shown to the end user.
	DefaultCoordinator = "Master Agent"

	// DefaultFallback answers when neither the coordinator nor the
	// keyword table selects anyone.
	DefaultFallback = "Biblical Theologian"

	// DefaultResponseTokens is the length directive attached to every
	// specialist system instruction.
	DefaultResponseTokens = 500
)

// sectionSeparator joins specialist sections in the aggregate.
const sectionSeparator = "\n\n"

// failedSection replaces the body of a specialist that failed.
const failedSection = "(unavailable)"

// coordinatorDirective keeps the coordinator from answering itself.
const coordinatorDirective = "\nIMPORTANT: Your task is ONLY to determine which specialized agents should handle this query. Do not provide an answer yourself. Instead, specify which agents to delegate to based on the query's nature."

// Engine is the per-process delegation engine. It is stateless across
// turns (session state lives in the caller-provided session.State) and
// safe for concurrent use.
type Engine struct {
	agents         *agent.Registry
	router         *router.Router
	classifier     Classifier
	coordinator    string
	fallback       string
	responseTokens int
	log            *slog.Logger
	audit          audit.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier swaps the specialist selection strategy.
func WithClassifier(c Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithCoordinator names the coordinator agent.
func WithCoordinator(name string) Option {
	return func(e *Engine) { e.coordinator = name }
}

// WithFallback names the default specialist.
func WithFallback(name string) Option {
	return func(e *Engine) { e.fallback = name }
}

// WithResponseTokenLimit sets the default response-token ceiling used to
// derive the length directive. Overridable per turn.
func WithResponseTokenLimit(n int) Option {
	return func(e *Engine) { e.responseTokens = n }
}

// WithLogger sets the engine's diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithAudit mirrors every appended turn to an audit logger. Audit
// failures are logged, never fatal to the chat turn.
func WithAudit(a audit.Logger) Option {
	return func(e *Engine) { e.audit = a }
}

// New creates an engine over the given registry and router.
func New(agents *agent.Registry, rt *router.Router, opts ...Option) *Engine {
	e := &Engine{
		agents:         agents,
		router:         rt,
		classifier:     NewKeywordClassifier(nil),
		coordinator:    DefaultCoordinator,
		fallback:       DefaultFallback,
		responseTokens: DefaultResponseTokens,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// turnConfig carries per-turn overrides.
type turnConfig struct {
	responseTokens int
	sessionID      string
}

// TurnOption overrides engine defaults for a single turn.
type TurnOption func(*turnConfig)

// WithResponseTokens overrides the response-token ceiling for this turn.
func WithResponseTokens(n int) TurnOption {
	return func(tc *turnConfig) {
		if n > 0 {
			tc.responseTokens = n
		}
	}
}

// WithSessionID tags audit records with the given session identifier.
func WithSessionID(id string) TurnOption {
	return func(tc *turnConfig) { tc.sessionID = id }
}

func (e *Engine) newTurnConfig(opts []TurnOption) turnConfig {
	tc := turnConfig{responseTokens: e.responseTokens, sessionID: "default"}
	for _, opt := range opts {
		opt(&tc)
	}
	return tc
}

// Handle processes one user message and returns the aggregated reply:
// one name-prefixed section per selected specialist, in selection order.
// The user message and the reply are appended to state exactly once each.
func (e *Engine) Handle(ctx context.Context, userMessage string, state session.State, opts ...TurnOption) (string, error) {
	tc := e.newTurnConfig(opts)

	specialists, err := e.selectSpecialists(ctx, userMessage, state)
	if err != nil {
		return "", err
	}

	sections := make([]string, 0, len(specialists))
	failed := 0
	var lastErr error
	for _, sp := range specialists {
		e.log.Info("delegating", "specialist", sp.Name)
		out, err := e.router.Complete(ctx, sp.Name, e.specialistPrompt(sp, userMessage, tc.responseTokens))
		if err != nil {
			if provider.IsFatal(err) {
				return "", err
			}
			e.log.Error("specialist failed", "specialist", sp.Name, "error", err)
			failed++
			lastErr = err
			sections = append(sections, formatSection(sp.Name, failedSection))
			continue
		}
		sections = append(sections, formatSection(sp.Name, out.Content))
	}
	if failed == len(specialists) {
		return "", fmt.Errorf("all %d specialists failed: %w", failed, lastErr)
	}

	reply := strings.Join(sections, sectionSeparator)
	e.finish(ctx, tc, state, userMessage, reply)
	return reply, nil
}

// HandleStream processes one user message, forwarding each specialist's
// chunks as they arrive. Per-specialist ordering is preserved;
// specialists are invoked in selection order. The session append happens
// only after the stream is fully drained; an abandoned stream appends
// nothing.
func (e *Engine) HandleStream(ctx context.Context, userMessage string, state session.State, opts ...TurnOption) (<-chan provider.StreamChunk, error) {
	tc := e.newTurnConfig(opts)

	specialists, err := e.selectSpecialists(ctx, userMessage, state)
	if err != nil {
		return nil, err
	}

	out := make(chan provider.StreamChunk)
	go func() {
		defer close(out)

		var full strings.Builder
		emit := func(text string) bool {
			full.WriteString(text)
			select {
			case out <- provider.StreamChunk{Content: text}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		failed := 0
		var lastErr error
		for i, sp := range specialists {
			if i > 0 && !emit(sectionSeparator) {
				return
			}
			if !emit(fmt.Sprintf("**%s**: ", sp.Name)) {
				return
			}

			e.log.Info("delegating", "specialist", sp.Name, "stream", true)
			chunks, err := e.router.Stream(ctx, sp.Name, e.specialistPrompt(sp, userMessage, tc.responseTokens))
			if err != nil {
				e.log.Error("specialist failed", "specialist", sp.Name, "error", err)
				if provider.IsFatal(err) {
					select {
					case out <- provider.StreamChunk{Done: true, Error: err}:
					case <-ctx.Done():
					}
					return
				}
				failed++
				lastErr = err
				if !emit(failedSection) {
					return
				}
				continue
			}

			ok := true
			for chunk := range chunks {
				if chunk.Error != nil {
					e.log.Error("specialist stream failed", "specialist", sp.Name, "error", chunk.Error)
					if provider.IsFatal(chunk.Error) {
						select {
						case out <- provider.StreamChunk{Done: true, Error: chunk.Error}:
						case <-ctx.Done():
						}
						return
					}
					ok = false
					lastErr = chunk.Error
					break
				}
				if chunk.Content != "" && !emit(chunk.Content) {
					return
				}
			}
			if !ok {
				failed++
			}
		}

		if failed == len(specialists) {
			select {
			case out <- provider.StreamChunk{Done: true, Error: fmt.Errorf("all %d specialists failed: %w", failed, lastErr)}:
			case <-ctx.Done():
			}
			return
		}

		e.finish(ctx, tc, state, userMessage, full.String())
		select {
		case out <- provider.StreamChunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// selectSpecialists runs classification and selection: ask the
// coordinator, parse its reply, fall back to the keyword table, and
// finally to the default specialist. Coordinator failures degrade to the
// keyword path rather than failing the turn.
func (e *Engine) selectSpecialists(ctx context.Context, userMessage string, state session.State) ([]agent.Profile, error) {
	reply := ""
	if coordinator, err := e.agents.Lookup(e.coordinator); err != nil {
		e.log.Warn("coordinator not registered, using keyword selection", "coordinator", e.coordinator)
	} else {
		history, err := state.History(ctx)
		if err != nil {
			e.log.Error("loading session history failed", "error", err)
		}
		msgs := make([]provider.Message, 0, len(history)+2)
		msgs = append(msgs, provider.NewMessage(provider.RoleSystem, coordinator.SystemMessage+coordinatorDirective))
		msgs = append(msgs, history...)
		msgs = append(msgs, provider.NewMessage(provider.RoleUser, userMessage))

		out, err := e.router.Complete(ctx, e.coordinator, msgs)
		if err != nil {
			if provider.IsFatal(err) {
				return nil, err
			}
			e.log.Error("coordinator call failed, using keyword selection", "error", err)
		} else {
			reply = out.Content
			e.log.Info("coordinator delegation decision", "decision", reply)
		}
	}

	names := e.classifier.Select(reply, userMessage)

	var selected []agent.Profile
	for _, name := range names {
		if name == e.coordinator {
			continue
		}
		profile, err := e.agents.Lookup(name)
		if err != nil {
			e.log.Warn("classifier named an unknown specialist", "specialist", name)
			continue
		}
		selected = append(selected, profile)
	}
	if len(selected) == 0 {
		fallback, err := e.agents.Lookup(e.fallback)
		if err != nil {
			return nil, fmt.Errorf("no specialist selected and fallback missing: %w", err)
		}
		selected = []agent.Profile{fallback}
	}
	return selected, nil
}

// specialistPrompt builds the turn sequence for one specialist: its
// system instruction plus a length directive, then the user message.
func (e *Engine) specialistPrompt(sp agent.Profile, userMessage string, responseTokens int) []provider.Message {
	return []provider.Message{
		provider.NewMessage(provider.RoleSystem, sp.SystemMessage+lengthDirective(responseTokens)),
		provider.NewMessage(provider.RoleUser, userMessage),
	}
}

// finish appends the user message and the aggregate to the session state
// (exactly once each) and mirrors both to the audit log when attached.
func (e *Engine) finish(ctx context.Context, tc turnConfig, state session.State, userMessage, reply string) {
	if err := state.Append(ctx, provider.RoleUser, userMessage); err != nil {
		e.log.Error("appending user turn failed", "error", err)
	}
	if err := state.Append(ctx, provider.RoleAssistant, reply); err != nil {
		e.log.Error("appending assistant turn failed", "error", err)
	}
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, tc.sessionID, provider.RoleUser, userMessage); err != nil {
		e.log.Error("audit log failed", "error", err)
	}
	if err := e.audit.Log(ctx, tc.sessionID, provider.RoleAssistant, reply); err != nil {
		e.log.Error("audit log failed", "error", err)
	}
}

func formatSection(name, body string) string {
	return fmt.Sprintf("**%s**: %s", name, body)
}

// lengthDirective derives the concision instruction from the configured
// response-token ceiling.
func lengthDirective(tokens int) string {
	return fmt.Sprintf("\n\nIMPORTANT: Please provide a concise response within approximately %d tokens. Focus on the most relevant information while maintaining clarity and completeness.", tokens)
}
