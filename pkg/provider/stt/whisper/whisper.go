// Package whisper provides an STT provider backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The provider accepts complete WAV clips (16-bit PCM) and transcribes them
// in one shot. It exists as a fully local alternative to the hosted OpenAI
// backend — useful for development without an API key and as a fallback when
// the hosted service is unavailable.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/example/spellvox/pkg/provider/stt"
)

// whisperSampleRate is the sample rate whisper.cpp expects.
const whisperSampleRate = 16000

// defaultLanguage is used when the request carries no language hint.
const defaultLanguage = "en"

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO).
// The model is loaded once at startup and shared across all calls; each
// Transcribe creates its own whisper context, so concurrent calls are safe.
type Provider struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default BCP-47 language code for transcription
// (e.g., "en", "de"). Defaults to "en". A per-request Language overrides it.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. Only WAV clips with 16-bit PCM samples
// are supported; other containers return an error (the hosted backend covers
// compressed formats).
//
// The clip is decoded, down-mixed to mono, resampled to 16 kHz, and run
// through a fresh whisper context. ctx is checked before the (blocking)
// native inference starts; the binding itself does not support mid-inference
// cancellation.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	if len(req.Audio) == 0 {
		return "", errors.New("whisper: audio must not be empty")
	}
	if !isWAV(req.ContentType) {
		return "", fmt.Errorf("whisper: unsupported content type %q (only WAV is supported)", req.ContentType)
	}

	clip, err := decodeWAV(req.Audio)
	if err != nil {
		return "", fmt.Errorf("whisper: decode wav: %w", err)
	}

	samples := clip.monoFloat32()
	if clip.sampleRate != whisperSampleRate {
		samples = resample(samples, clip.sampleRate, whisperSampleRate)
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context cancelled before inference: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// isWAV reports whether contentType denotes a RIFF/WAVE container.
func isWAV(contentType string) bool {
	mediaType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}
	switch mediaType {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	}
	return false
}
