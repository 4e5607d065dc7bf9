// Package say implements the baseline TTS provider using the platform
// speech command: `say` on macOS, `espeak-ng`/`espeak` on Linux.
//
// This is the guaranteed fallback target for every other provider: it needs
// no network access and no credentials, and is available whenever the host
// platform supports audio output at all. A listener immediately notices its
// distinct voice when a cloud provider has silently failed over to it.
package say

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/outloud-dev/outloud/internal/pidfile"
	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// speechRecord names the on-disk record of the speech subprocess. Dispatch
// cycles are detached processes, so Cancel must be able to kill speech
// started by an earlier cycle, not just by this Provider instance.
const speechRecord = "speech"

// Provider speaks through the platform speech command.
type Provider struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

// New returns a ready Provider. No I/O happens until Probe or Speak.
func New() *Provider {
	return &Provider{}
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return tts.BaselineName }

// Probe implements tts.Provider. It succeeds iff the platform speech binary
// is on PATH.
func (p *Provider) Probe(_ context.Context) error {
	_, err := lookupSpeechBinary()
	return err
}

// Speak implements tts.Provider. It blocks until the utterance finishes.
func (p *Provider) Speak(ctx context.Context, text string, opts tts.SpeakOptions) error {
	bin, err := lookupSpeechBinary()
	if err != nil {
		return err
	}

	_ = p.Cancel(ctx)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, speechArgs(opts, text)...)
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("say: %s failed: %w", bin, err)
	}
	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()
	pidfile.Write(speechRecord, cmd.Process.Pid)

	err = cmd.Wait()
	pidfile.Clear(speechRecord, cmd.Process.Pid)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("say: %s failed: %w: %s", bin, err, stderr.Bytes())
	}
	return nil
}

// Cancel implements tts.Provider. It kills any in-flight speech process,
// including one started by an earlier dispatch process via the on-disk
// record.
func (p *Provider) Cancel(_ context.Context) error {
	p.mu.Lock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil
	p.mu.Unlock()

	pidfile.Kill(speechRecord)
	return nil
}
