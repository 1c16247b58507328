package budget

import (
	"context"
	"strings"

	"github.com/randalmurphal/studykit/provider"
)

// guardedClient wraps a provider.Client so every call is admitted through
// a Guard before it goes out and again once the response size is known.
type guardedClient struct {
	inner provider.Client
	guard *Guard
}

// Guarded wraps client so the guard admits the prompt estimate before each
// call and the response estimate after it. For streams, the post-call
// admission happens once the final chunk arrives; a quota breach there is
// surfaced as the terminal chunk error. A nil guard returns client
// unchanged.
func Guarded(client provider.Client, guard *Guard) provider.Client {
	if guard == nil {
		return client
	}
	return &guardedClient{inner: client, guard: guard}
}

func (c *guardedClient) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if err := c.guard.Admit(ctx, EstimateMessages(req.Messages)); err != nil {
		return nil, err
	}
	resp, err := c.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.guard.Admit(ctx, Estimate(resp.Content)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *guardedClient) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	if err := c.guard.Admit(ctx, EstimateMessages(req.Messages)); err != nil {
		return nil, err
	}
	inner, err := c.inner.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan provider.StreamChunk)
	go func() {
		defer close(out)
		var acc strings.Builder
		admitted := false
		for chunk := range inner {
			acc.WriteString(chunk.Content)
			if chunk.Done && chunk.Error == nil && !admitted {
				admitted = true
				if aerr := c.guard.Admit(ctx, Estimate(acc.String())); aerr != nil {
					chunk = provider.StreamChunk{Done: true, Error: aerr}
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				// The inner producer shares ctx and will stop on its own.
				return
			}
		}
	}()
	return out, nil
}

func (c *guardedClient) ResolveModel(model string) (provider.ModelParams, error) {
	return c.inner.ResolveModel(model)
}

func (c *guardedClient) Provider() string {
	return c.inner.Provider()
}

func (c *guardedClient) Close() error {
	return c.inner.Close()
}
