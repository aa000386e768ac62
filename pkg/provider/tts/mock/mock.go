// Package mock provides a tts.Provider test double.
package mock

import (
	"context"
	"sync"

	"github.com/example/spellvox/pkg/provider/tts"
)

// Call records the arguments of one Synthesize invocation.
type Call struct {
	Ctx context.Context
	Req tts.Request
}

// Provider is a configurable in-memory tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Clip is returned by Synthesize when Err is nil.
	Clip *tts.Clip
	// VoiceList is returned by Voices.
	VoiceList []string
	// Err, when set, is returned by both methods.
	Err error

	Calls []Call
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Clip != nil {
		return p.Clip, nil
	}
	return &tts.Clip{Audio: []byte("audio"), ContentType: "audio/mpeg"}, nil
}

// Voices implements tts.Provider.
func (p *Provider) Voices(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.VoiceList, nil
}

// CallCount returns the number of recorded Synthesize calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
