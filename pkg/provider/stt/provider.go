// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (e.g., the OpenAI audio API
// or a local whisper.cpp instance) behind a single request/response call:
// audio bytes in, transcript text out. Spellvox users record one short clip
// per attempt — they spell a word out loud with letter names — so there is no
// streaming session to manage; the whole clip is transcribed as one fallible
// unit of work.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Request describes one transcription call.
type Request struct {
	// Audio is the encoded audio clip as uploaded by the browser.
	Audio []byte

	// ContentType is the MIME type of Audio (e.g., "audio/webm", "audio/wav").
	// Providers that only accept specific containers should return an error
	// for types they cannot handle rather than guessing.
	ContentType string

	// Language is the BCP-47 language tag for recognition (e.g., "en").
	// Empty lets the provider auto-detect, if supported.
	Language string

	// Prompt is an optional priming hint passed to the recognizer. Spellvox
	// uses it to bias the model toward letter names ("ay", "bee", "see", …),
	// which are otherwise easy to mishear as words.
	Prompt string
}

// Provider is the abstraction over any STT backend.
//
// Transcribe must respect context cancellation and deadlines: every call is
// bounded by the caller and treated as a single fallible unit — no partial
// transcripts, no internal retries. A failed call is recoverable from the
// user's point of view (the client prompts "record again").
type Provider interface {
	// Transcribe converts the audio clip in req to text. The returned string
	// is the raw transcript; it may be empty when the clip contains no
	// recognisable speech, which is not an error.
	Transcribe(ctx context.Context, req Request) (string, error)
}
