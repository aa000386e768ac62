// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service and returns a complete
// encoded audio clip per call. Spellvox synthesizes short prompts (a single
// practice word, or a context sentence) so there is no need for streaming
// synthesis; the clip is produced as one fallible unit of work.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Request describes one synthesis call.
type Request struct {
	// Text is the text to speak. Must be non-empty.
	Text string

	// Voice selects a voice by provider-specific name. Implementations keep
	// an allow-list of known voices and fall back to their default voice for
	// unrecognised values rather than failing — the client may be pinned to
	// a voice the provider has since retired.
	Voice string

	// Speed is the speaking-rate multiplier. Zero means the provider
	// default (1.0). Implementations clamp out-of-range values.
	Speed float64
}

// Clip is a complete synthesized audio clip.
type Clip struct {
	// Audio is the encoded audio payload.
	Audio []byte

	// ContentType is the MIME type of Audio (e.g., "audio/mpeg").
	ContentType string
}

// Provider is the abstraction over any TTS backend.
//
// Synthesize must respect context cancellation and deadlines. A failed call
// carries no retry policy beyond surfacing the error; retry is a
// user-initiated action.
type Provider interface {
	// Synthesize converts req.Text to speech and returns the encoded clip.
	Synthesize(ctx context.Context, req Request) (*Clip, error)

	// Voices returns the names of voices this provider accepts, with the
	// default voice first. The list is static for allow-list providers but
	// may reflect a live catalogue for others.
	Voices(ctx context.Context) ([]string, error)
}
