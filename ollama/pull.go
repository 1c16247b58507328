package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/randalmurphal/studykit/provider"
)

// EnsureModels verifies that every model in the client's configuration
// table (or the given subset, if non-empty) is present on the server,
// pulling any that are missing. A failed pull of a version-tagged
// identifier is retried once with the tag stripped; if that also fails the
// model is reported via provider.ErrModelNotPulled and not retried again.
func (c *Client) EnsureModels(ctx context.Context, models ...string) error {
	if len(models) == 0 {
		for m := range c.models {
			models = append(models, m)
		}
	}
	for _, model := range models {
		if err := c.ensureModel(ctx, model); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureModel(ctx context.Context, model string) error {
	err := c.show(ctx, model)
	if err == nil {
		return nil
	}

	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusNotFound {
		return provider.NewError(Name, "show", err, true)
	}

	c.log.Warn("model not present, pulling", "model", model)
	if err := c.pull(ctx, model); err != nil {
		c.log.Error("pull failed", "model", model, "error", err)
	} else {
		return nil
	}

	// A tagged identifier gets one more chance without the version tag.
	if base, _, tagged := strings.Cut(model, ":"); tagged {
		c.log.Warn("retrying pull without version tag", "model", base)
		if err := c.pull(ctx, base); err != nil {
			c.log.Error("untagged pull failed", "model", base, "error", err)
		} else {
			return nil
		}
	}
	return provider.NewError(Name, "pull", fmt.Errorf("%w: %s", provider.ErrModelNotPulled, model), false)
}

// show checks model presence via /api/show.
func (c *Client) show(ctx context.Context, model string) error {
	resp, err := c.post(ctx, "/api/show", map[string]string{"model": model})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// pull fetches a model via /api/pull. Streaming progress is disabled; the
// call returns once the pull finishes.
func (c *Client) pull(ctx context.Context, model string) error {
	resp, err := c.post(ctx, "/api/pull", map[string]any{"model": model, "stream": false})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
