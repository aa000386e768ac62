package observe

import (
	"context"
	"time"

	"github.com/example/spellvox/pkg/provider/embeddings"
	"github.com/example/spellvox/pkg/provider/llm"
	"github.com/example/spellvox/pkg/provider/stt"
	"github.com/example/spellvox/pkg/provider/tts"
)

// This file holds measuring decorators for the provider interfaces. Each one
// wraps a provider so every outbound call lands in the provider request
// metrics, labelled with the configured provider name and its kind.

var (
	_ stt.Provider        = (*instrumentedSTT)(nil)
	_ tts.Provider        = (*instrumentedTTS)(nil)
	_ llm.Provider        = (*instrumentedLLM)(nil)
	_ embeddings.Provider = (*instrumentedEmbeddings)(nil)
)

// InstrumentSTT returns p with every Transcribe call timed and counted.
func InstrumentSTT(p stt.Provider, name string, m *Metrics) stt.Provider {
	return &instrumentedSTT{p: p, name: name, m: m}
}

type instrumentedSTT struct {
	p    stt.Provider
	name string
	m    *Metrics
}

func (i *instrumentedSTT) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	start := time.Now()
	text, err := i.p.Transcribe(ctx, req)
	i.m.RecordProviderRequest(ctx, i.name, "stt", time.Since(start).Seconds(), err)
	return text, err
}

// InstrumentTTS returns p with every Synthesize and Voices call timed and
// counted.
func InstrumentTTS(p tts.Provider, name string, m *Metrics) tts.Provider {
	return &instrumentedTTS{p: p, name: name, m: m}
}

type instrumentedTTS struct {
	p    tts.Provider
	name string
	m    *Metrics
}

func (i *instrumentedTTS) Synthesize(ctx context.Context, req tts.Request) (*tts.Clip, error) {
	start := time.Now()
	clip, err := i.p.Synthesize(ctx, req)
	i.m.RecordProviderRequest(ctx, i.name, "tts", time.Since(start).Seconds(), err)
	return clip, err
}

func (i *instrumentedTTS) Voices(ctx context.Context) ([]string, error) {
	start := time.Now()
	voices, err := i.p.Voices(ctx)
	i.m.RecordProviderRequest(ctx, i.name, "tts", time.Since(start).Seconds(), err)
	return voices, err
}

// InstrumentLLM returns p with every Complete call timed and counted.
func InstrumentLLM(p llm.Provider, name string, m *Metrics) llm.Provider {
	return &instrumentedLLM{p: p, name: name, m: m}
}

type instrumentedLLM struct {
	p    llm.Provider
	name string
	m    *Metrics
}

func (i *instrumentedLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	start := time.Now()
	resp, err := i.p.Complete(ctx, req)
	i.m.RecordProviderRequest(ctx, i.name, "llm", time.Since(start).Seconds(), err)
	return resp, err
}

// InstrumentEmbeddings returns p with every Embed and EmbedBatch call timed
// and counted. Dimensions and ModelID pass through untouched.
func InstrumentEmbeddings(p embeddings.Provider, name string, m *Metrics) embeddings.Provider {
	return &instrumentedEmbeddings{p: p, name: name, m: m}
}

type instrumentedEmbeddings struct {
	p    embeddings.Provider
	name string
	m    *Metrics
}

func (i *instrumentedEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := i.p.Embed(ctx, text)
	i.m.RecordProviderRequest(ctx, i.name, "embeddings", time.Since(start).Seconds(), err)
	return vec, err
}

func (i *instrumentedEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.p.EmbedBatch(ctx, texts)
	i.m.RecordProviderRequest(ctx, i.name, "embeddings", time.Since(start).Seconds(), err)
	return vecs, err
}

func (i *instrumentedEmbeddings) Dimensions() int {
	return i.p.Dimensions()
}

func (i *instrumentedEmbeddings) ModelID() string {
	return i.p.ModelID()
}
