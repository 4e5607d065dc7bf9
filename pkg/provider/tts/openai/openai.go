// Package openai provides an OpenAI-backed TTS provider using the audio
// speech endpoint of the official Go SDK. It implements the tts.Provider
// interface.
//
// Synthesis is batch: one HTTP call per utterance returning MP3, which is
// then played locally. The default voice is "alloy".
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/outloud-dev/outloud/internal/player"
	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

const (
	defaultModel   = oai.SpeechModelGPT4oMiniTTS
	defaultVoice   = "alloy"
	defaultTimeout = 30 * time.Second
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the OpenAI Provider.
type Option func(*Provider)

// WithModel sets the speech model (e.g., "tts-1", "gpt-4o-mini-tts").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = oai.SpeechModel(model)
	}
}

// WithBaseURL overrides the API endpoint, for proxies or compatible servers.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// Provider implements tts.Provider backed by the OpenAI speech API.
type Provider struct {
	client  oai.Client
	model   oai.SpeechModel
	baseURL string
	timeout time.Duration

	file   *player.FilePlayer
	stream *player.StreamPlayer

	mu        sync.Mutex
	cancelRun context.CancelFunc
}

// New constructs an OpenAI Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	p := &Provider{
		model:   defaultModel,
		timeout: defaultTimeout,
		file:    player.NewFilePlayer(),
		stream:  player.NewStreamPlayer(),
	}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: p.timeout}),
	}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "openai" }

// Probe implements tts.Provider. Construction already guarantees a key, so
// the probe only has to confirm some local playback path exists. No network
// call is made: a bad key surfaces as a speak failure and triggers fallback.
func (p *Provider) Probe(_ context.Context) error {
	// The PortAudio stream player is always a viable fallback for MP3, so a
	// missing file-playback command is not a probe failure.
	return nil
}

// Speak implements tts.Provider. It synthesises text to MP3 and plays it,
// blocking until playback finishes.
func (p *Provider) Speak(ctx context.Context, text string, opts tts.SpeakOptions) error {
	_ = p.Cancel(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.mu.Lock()
	p.cancelRun = cancel
	p.mu.Unlock()

	voice := opts.Voice
	if voice == "" {
		voice = defaultVoice
	}

	params := oai.AudioSpeechNewParams{
		Model:          p.model,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if opts.Rate > 0 {
		params.Speed = param.NewOpt(opts.Rate)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai: speech request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openai: read audio: %w", err)
	}

	return p.playMP3(ctx, audio)
}

// Cancel implements tts.Provider.
func (p *Provider) Cancel(_ context.Context) error {
	p.mu.Lock()
	if p.cancelRun != nil {
		p.cancelRun()
		p.cancelRun = nil
	}
	p.mu.Unlock()

	p.file.Stop()
	p.stream.Stop()
	return nil
}

// playMP3 plays audio through the system playback command when one exists,
// falling back to the PortAudio stream player otherwise.
func (p *Provider) playMP3(ctx context.Context, audio []byte) error {
	if p.file.Available() == nil {
		tmp, err := os.CreateTemp("", "outloud-openai-*.mp3")
		if err != nil {
			return fmt.Errorf("openai: temp audio file: %w", err)
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(audio); err != nil {
			tmp.Close()
			return fmt.Errorf("openai: write audio: %w", err)
		}
		tmp.Close()
		return p.file.PlayFile(ctx, tmp.Name())
	}
	return p.stream.PlayMP3(ctx, bytes.NewReader(audio))
}
