// Package chatterbox provides a TTS provider backed by a locally-running
// Chatterbox synthesis server. It implements the tts.Provider interface.
//
// The server loads the Chatterbox model once and serves synthesis over a
// small HTTP API on 127.0.0.1:
//
//   - GET  /health   → {"status":"ok","model_loaded":bool,"device":str}
//   - POST /speak    → {"audio_path":str,"sample_rate":int,"chunks":int}
//   - POST /shutdown → terminates the server
//
// The server writes synthesised audio to a temp WAV file and returns its
// path; the provider plays it locally and removes it afterwards. Probe
// lazily starts the server when it is not already running, waiting
// (bounded) for model load, and records its PID under the outloud config
// directory for later shutdown.
package chatterbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/outloud-dev/outloud/internal/player"
	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

const (
	defaultPort    = 7865
	defaultCommand = "outloud-chatterbox-server"

	healthEndpoint   = "/health"
	speakEndpoint    = "/speak"
	shutdownEndpoint = "/shutdown"

	// maxChunkSize is the sentence-chunking limit the server applies to
	// long text before synthesis.
	maxChunkSize = 200

	// startupWait bounds how long Probe waits for a lazily-started server
	// to finish loading the model.
	startupWait = 30 * time.Second

	// healthPollInterval is the delay between health polls during startup.
	healthPollInterval = 500 * time.Millisecond

	pidFileName = "chatterbox.pid"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Chatterbox Provider.
type Option func(*Provider)

// WithPort sets the server port. Defaults to 7865 (CHATTERBOX_PORT in the
// server's environment).
func WithPort(port int) Option {
	return func(p *Provider) {
		p.port = port
	}
}

// WithServerCommand sets the command used to lazily start the server.
func WithServerCommand(command string) Option {
	return func(p *Provider) {
		p.command = command
	}
}

// WithConfigDir sets the directory for the server PID file. Defaults to
// ~/.config/outloud.
func WithConfigDir(dir string) Option {
	return func(p *Provider) {
		p.configDir = dir
	}
}

// Provider implements tts.Provider backed by a local Chatterbox server.
type Provider struct {
	port       int
	command    string
	configDir  string
	httpClient *http.Client
	file       *player.FilePlayer

	mu      sync.Mutex
	started bool
}

// New constructs a Chatterbox Provider. No I/O happens until Probe or Speak.
func New(opts ...Option) *Provider {
	p := &Provider{
		port:       defaultPort,
		command:    defaultCommand,
		httpClient: &http.Client{},
		file:       player.NewFilePlayer(),
	}
	if home, err := os.UserHomeDir(); err == nil {
		p.configDir = filepath.Join(home, ".config", "outloud")
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "chatterbox" }

// baseURL returns the server's base URL.
func (p *Provider) baseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", p.port)
}

// Probe implements tts.Provider. A healthy server passes immediately;
// otherwise the server command is started in the background and the probe
// polls /health until the model is loaded or startupWait elapses.
func (p *Provider) Probe(ctx context.Context) error {
	if p.healthy(ctx) == nil {
		return nil
	}
	if err := p.startServer(); err != nil {
		return err
	}

	deadline := time.Now().Add(startupWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(healthPollInterval):
		}
		if p.healthy(ctx) == nil {
			return nil
		}
	}
	return fmt.Errorf("chatterbox: server did not become healthy within %s", startupWait)
}

// healthy checks GET /health with a short per-call timeout.
func (p *Provider) healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL()+healthEndpoint, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatterbox: health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatterbox: health: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// startServer spawns the server command detached, at most once per provider
// lifetime, and records its PID for later shutdown.
func (p *Provider) startServer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	bin, err := exec.LookPath(p.command)
	if err != nil {
		return fmt.Errorf("chatterbox: server command %q not found: %w", p.command, err)
	}

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(), "CHATTERBOX_PORT="+strconv.Itoa(p.port))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("chatterbox: start server: %w", err)
	}
	p.started = true

	if p.configDir != "" {
		if err := os.MkdirAll(p.configDir, 0o755); err == nil {
			pid := strconv.Itoa(cmd.Process.Pid)
			_ = os.WriteFile(filepath.Join(p.configDir, pidFileName), []byte(pid), 0o644)
		}
	}

	// The server outlives this process; reap it if it exits first.
	go func() { _ = cmd.Wait() }()
	return nil
}

// speakRequest is the POST /speak request body.
type speakRequest struct {
	Text         string `json:"text"`
	MaxChunkSize int    `json:"max_chunk_size"`
}

// speakResponse is the POST /speak response body.
type speakResponse struct {
	AudioPath  string `json:"audio_path"`
	SampleRate int    `json:"sample_rate"`
	Chunks     int    `json:"chunks"`
	Error      string `json:"error,omitempty"`
}

// Speak implements tts.Provider. The server synthesises to a WAV file which
// is played locally and then removed. Voice and rate options are ignored:
// the Chatterbox model has a single built-in voice.
func (p *Provider) Speak(ctx context.Context, text string, _ tts.SpeakOptions) error {
	_ = p.Cancel(ctx)

	body, err := json.Marshal(speakRequest{Text: text, MaxChunkSize: maxChunkSize})
	if err != nil {
		return fmt.Errorf("chatterbox: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+speakEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chatterbox: speak request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatterbox: speak: %w", err)
	}
	defer resp.Body.Close()

	var sr speakResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return fmt.Errorf("chatterbox: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || sr.Error != "" {
		return fmt.Errorf("chatterbox: synthesis failed (status %d): %s", resp.StatusCode, sr.Error)
	}
	if sr.AudioPath == "" {
		return fmt.Errorf("chatterbox: server returned no audio path")
	}
	defer os.Remove(sr.AudioPath)

	return p.file.PlayFile(ctx, sr.AudioPath)
}

// Cancel implements tts.Provider. It stops local playback; synthesis already
// underway on the server is left to finish.
func (p *Provider) Cancel(_ context.Context) error {
	p.file.Stop()
	return nil
}

// Shutdown asks a running server to terminate. Used by `outloud stop` so the
// model is unloaded when speech is no longer wanted.
func (p *Provider) Shutdown(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+shutdownEndpoint, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatterbox: shutdown: %w", err)
	}
	resp.Body.Close()
	return nil
}
