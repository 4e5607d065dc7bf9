// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API. It implements the tts.Provider
// interface.
//
// Synthesis streams PCM chunks over the stream-input socket straight into
// the local PortAudio player, so playback starts before the full utterance
// has been synthesised.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/outloud-dev/outloud/internal/player"
	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"
	defaultModel   = "eleven_flash_v2_5"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel, available on every account
	outputFormat   = "pcm_16000"
	pcmSampleRate  = 16000
	probeTimeout   = 3 * time.Second
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey     string
	model      string
	httpClient *http.Client
	stream     *player.StreamPlayer

	mu        sync.Mutex
	cancelRun context.CancelFunc
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		httpClient: &http.Client{},
		stream:     player.NewStreamPlayer(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "elevenlabs" }

// Probe implements tts.Provider. It verifies the API key against the voices
// endpoint with a short timeout so an unreachable or unauthorised account
// fails over before any synthesis is attempted.
func (p *Provider) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: probe: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("elevenlabs: probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// Speak implements tts.Provider. It opens a stream-input WebSocket, sends
// the full utterance, and plays PCM chunks as they arrive. Blocks until
// playback finishes or ctx is cancelled.
func (p *Provider) Speak(ctx context.Context, text string, opts tts.SpeakOptions) error {
	_ = p.Cancel(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.mu.Lock()
	p.cancelRun = cancel
	p.mu.Unlock()

	voiceID := opts.Voice
	if voiceID == "" {
		voiceID = defaultVoiceID
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, voiceID, p.model, outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if opts.Rate > 0 {
		vs.Speed = opts.Rate
	}

	// BOI handshake: ElevenLabs requires a non-empty first text value.
	boi := boiMessage{Text: " ", VoiceSettings: vs, XiAPIKey: p.apiKey}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return fmt.Errorf("elevenlabs: send BOI: %w", err)
	}
	if err := writeJSON(ctx, conn, textMessage{Text: text + " "}); err != nil {
		return fmt.Errorf("elevenlabs: send text: %w", err)
	}
	// Empty text flushes the stream and ends input.
	if err := writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
		return fmt.Errorf("elevenlabs: flush: %w", err)
	}

	audioCh := make(chan []byte, 256)
	readErr := make(chan error, 1)
	go func() {
		defer close(audioCh)
		readErr <- readAudio(ctx, conn, audioCh)
	}()

	if err := p.stream.PlayPCM(ctx, audioCh, pcmSampleRate); err != nil {
		return fmt.Errorf("elevenlabs: playback: %w", err)
	}
	if err := <-readErr; err != nil {
		return fmt.Errorf("elevenlabs: stream: %w", err)
	}
	return nil
}

// Cancel implements tts.Provider.
func (p *Provider) Cancel(_ context.Context) error {
	p.mu.Lock()
	if p.cancelRun != nil {
		p.cancelRun()
		p.cancelRun = nil
	}
	p.mu.Unlock()

	p.stream.Stop()
	return nil
}

// readAudio drains websocket messages into audioCh until the final message
// arrives. Returns a non-nil error when ElevenLabs reports one in-band.
func readAudio(ctx context.Context, conn *websocket.Conn, audioCh chan<- []byte) error {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Server closes the socket after the final message.
			return nil
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Message != "" {
			return fmt.Errorf("server reported: %s", resp.Message)
		}
		if resp.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err == nil {
				select {
				case audioCh <- pcm:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if resp.IsFinal {
			return nil
		}
	}
}

// writeJSON marshals v and writes it as a single text frame.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
