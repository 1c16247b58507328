package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/randalmurphal/studykit/provider"
)

// window is the length of the per-minute accounting window.
const window = time.Minute

// DefaultSpacing is the minimum interval between admitted calls unless
// overridden with WithSpacing.
const DefaultSpacing = time.Second

// Guard enforces a sliding per-minute token allowance, a minimum
// inter-call spacing, and a hard lifetime ceiling. All state is guarded
// by one mutex; admissions are fully serialized.
type Guard struct {
	perMinute int
	lifetime  int
	spacing   *rate.Limiter
	log       *slog.Logger

	// Injectable clock, for tests. now reads wall time; sleep blocks for
	// d or until ctx is done.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu             sync.Mutex
	minuteTokens   int
	windowStart    time.Time
	lifetimeTokens int
}

// Option configures a Guard.
type Option func(*Guard)

// WithSpacing sets the minimum interval between admitted calls.
// Zero or negative disables spacing enforcement.
func WithSpacing(d time.Duration) Option {
	return func(g *Guard) {
		if d <= 0 {
			g.spacing = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.spacing = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLogger sets the logger used for wait and quota diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		g.log = l
	}
}

// WithClock overrides the wall clock and the blocking sleep, for tests.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(g *Guard) {
		g.now = now
		g.sleep = sleep
	}
}

// New creates a Guard admitting at most tokensPerMinute tokens in any
// minute window and tokensLifetime tokens over the process lifetime.
func New(tokensPerMinute, tokensLifetime int, opts ...Option) *Guard {
	g := &Guard{
		perMinute: tokensPerMinute,
		lifetime:  tokensLifetime,
		spacing:   rate.NewLimiter(rate.Every(DefaultSpacing), 1),
		log:       slog.Default(),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.windowStart = g.now()
	return g
}

// Admit requests permission to consume tokens. It must be called before
// every outbound model call with the prompt estimate and again afterwards
// with the response estimate.
//
// Admit may suspend the caller: to honor the minimum call spacing, or
// until the minute window rolls over when the window cannot fit the
// admission. Those waits are not errors. The only error paths are a
// cancelled context and provider.ErrQuotaExceeded once the lifetime
// ceiling is breached; the latter is permanent.
func (g *Guard) Admit(ctx context.Context, tokens int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// The lifetime counter is monotonic; once over the ceiling there is
	// no reset path.
	if g.lifetimeTokens > g.lifetime {
		return provider.ErrQuotaExceeded
	}

	if err := g.spacing.Wait(ctx); err != nil {
		return fmt.Errorf("budget admission interrupted: %w", err)
	}

	now := g.now()
	if now.Sub(g.windowStart) >= window {
		g.minuteTokens = 0
		g.windowStart = now
	}

	if g.minuteTokens+tokens > g.perMinute {
		wait := window - now.Sub(g.windowStart)
		g.log.Warn("per-minute token ceiling reached, pausing",
			"wait", wait, "minute_tokens", g.minuteTokens, "requested", tokens)
		if err := g.sleep(ctx, wait); err != nil {
			return fmt.Errorf("budget admission interrupted: %w", err)
		}
		g.minuteTokens = 0
		g.windowStart = g.now()
	}

	g.minuteTokens += tokens
	g.lifetimeTokens += tokens
	if g.lifetimeTokens > g.lifetime {
		g.log.Error("lifetime token ceiling exceeded",
			"lifetime_tokens", g.lifetimeTokens, "ceiling", g.lifetime)
		return provider.ErrQuotaExceeded
	}
	return nil
}

// Usage reports the tokens admitted in the current minute window and over
// the process lifetime.
func (g *Guard) Usage() (minute, lifetime int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.minuteTokens, g.lifetimeTokens
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
