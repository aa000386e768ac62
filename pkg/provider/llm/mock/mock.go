// Package mock provides an llm.Provider test double.
package mock

import (
	"context"
	"sync"

	"github.com/example/spellvox/pkg/provider/llm"
)

// Call records the arguments of one Complete invocation.
type Call struct {
	Ctx context.Context
	Req llm.Request
}

// Provider is a configurable in-memory llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Content is returned as the completion body when Responses is empty.
	Content string
	// Responses, when non-empty, is consumed one entry per call in order.
	// After the last entry the final one repeats.
	Responses []string
	// Err, when set, is returned by Complete.
	Err error

	Calls []Call
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})
	if p.Err != nil {
		return nil, p.Err
	}

	content := p.Content
	if n := len(p.Responses); n > 0 {
		i := len(p.Calls) - 1
		if i >= n {
			i = n - 1
		}
		content = p.Responses[i]
	}

	promptTokens := (len(req.System) + len(req.Prompt)) / 4
	completionTokens := len(content) / 4
	return &llm.Response{
		Content: content,
		Usage: llm.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// CallCount returns the number of recorded Complete calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
