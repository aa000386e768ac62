// Package mock provides an embeddings.Provider test double.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/example/spellvox/pkg/provider/embeddings"
)

// Provider is a deterministic in-memory embeddings.Provider. Identical
// inputs always yield identical vectors, so similarity-based code paths can
// be tested without a live backend.
type Provider struct {
	mu sync.Mutex

	// Dim is the vector dimensionality. Zero means 8.
	Dim int
	// Err, when set, is returned by Embed and EmbedBatch.
	Err error

	Texts []string
}

var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vector(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, texts...)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dim > 0 {
		return p.Dim
	}
	return 8
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return "mock-embedding"
}

// vector derives a stable pseudo-embedding from the input text.
func (p *Provider) vector(text string) []float32 {
	dim := p.Dim
	if dim <= 0 {
		dim = 8
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	out := make([]float32, dim)
	for i := range out {
		seed = seed*6364136223846793005 + 1442695040888963407
		out[i] = float32(int64(seed>>33))/float32(1<<30) - 1
	}
	return out
}
