package provider

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds the settings for constructing one provider family client.
type Config struct {
	// BaseURL is the endpoint root. Empty uses the family default.
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url"`

	// APIKey is the credential for remote families. Families that
	// require one fail construction with ErrProviderUnavailable when it
	// is empty; local families ignore it.
	APIKey string `json:"-" yaml:"-" toml:"-"`

	// Models is this family's configuration table, keyed by model
	// identifier. A model identifier belongs to exactly one family.
	Models map[string]ModelParams `json:"models" yaml:"models" toml:"models"`

	// Timeout bounds each network call. Zero uses the family default.
	Timeout time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client `json:"-" yaml:"-" toml:"-"`

	// Logger receives adapter diagnostics. Nil uses slog.Default.
	Logger *slog.Logger `json:"-" yaml:"-" toml:"-"`
}

// DefaultTimeout bounds provider network calls unless overridden.
const DefaultTimeout = 2 * time.Minute

// Log returns the configured logger or the process default.
func (c Config) Log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
