// Package openai provides a TTS provider backed by the OpenAI speech API.
// It implements the tts.Provider interface.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/example/spellvox/pkg/provider/tts"
)

const (
	// defaultModel is the speech model used when none is configured.
	defaultModel = "gpt-4o-mini-tts"

	// defaultVoice is used for empty or unrecognised voice names.
	defaultVoice = "alloy"

	// outputContentType is the MIME type of clips produced by the API's
	// default (mp3) response format.
	outputContentType = "audio/mpeg"
)

// knownVoices is the allow-list of voice names accepted by the speech API,
// default voice first. Unrecognised names fall back to the default rather
// than failing the request.
var knownVoices = []string{
	"alloy", "ash", "ballad", "coral", "echo", "fable",
	"nova", "onyx", "sage", "shimmer", "verse",
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel selects the speech model (default "gpt-4o-mini-tts").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
}

var _ tts.Provider = (*Provider)(nil)

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Clip, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("openai tts: text must not be empty")
	}

	params := oai.AudioSpeechNewParams{
		Model: oai.SpeechModel(p.model),
		Input: req.Text,
		Voice: oai.AudioSpeechNewParamsVoice(ResolveVoice(req.Voice)),
	}
	if req.Speed != 0 {
		params.Speed = param.NewOpt(clampSpeed(req.Speed))
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai tts: empty audio response")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = outputContentType
	}

	return &tts.Clip{Audio: audio, ContentType: contentType}, nil
}

// Voices implements tts.Provider. The list is the static allow-list, default
// voice first.
func (p *Provider) Voices(_ context.Context) ([]string, error) {
	return slices.Clone(knownVoices), nil
}

// ResolveVoice maps a requested voice name onto the allow-list, returning
// the default voice for empty or unrecognised names.
func ResolveVoice(voice string) string {
	if slices.Contains(knownVoices, voice) {
		return voice
	}
	return defaultVoice
}

// clampSpeed bounds the speaking-rate multiplier to the API's accepted
// range [0.25, 4.0].
func clampSpeed(speed float64) float64 {
	if speed < 0.25 {
		return 0.25
	}
	if speed > 4.0 {
		return 4.0
	}
	return speed
}
