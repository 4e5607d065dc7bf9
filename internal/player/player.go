// Package player handles local audio playback for providers that receive
// synthesised audio rather than playing it themselves.
//
// Two players are available: FilePlayer shells out to the first system
// playback command found on PATH (afplay, ffplay, mpv, paplay, aplay), and
// StreamPlayer writes raw PCM to the default output device through
// PortAudio, with MP3 decoding on top. Providers pick whichever fits their
// audio handoff: file paths go to FilePlayer, byte streams to StreamPlayer.
package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/outloud-dev/outloud/internal/pidfile"
)

// ErrNoPlaybackCommand is returned when no known playback binary is on PATH.
var ErrNoPlaybackCommand = errors.New("player: no playback command found")

// playbackRecord names the on-disk record of the playback subprocess, so a
// later dispatch cycle or `outloud stop` can kill audio started by another
// process.
const playbackRecord = "playback"

// playbackCommands lists candidate playback binaries in preference order,
// with the arguments that make them exit when the file ends.
var playbackCommands = []struct {
	bin  string
	args []string
}{
	{bin: "afplay"},
	{bin: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{bin: "mpv", args: []string{"--no-video", "--really-quiet"}},
	{bin: "paplay"},
	{bin: "aplay", args: []string{"-q"}},
}

// FilePlayer plays audio files by spawning a system playback command.
// It is safe for concurrent use; starting a new playback stops the previous
// one first.
type FilePlayer struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewFilePlayer returns a FilePlayer. Availability of a playback command is
// checked lazily on first use; call Available to probe up front.
func NewFilePlayer() *FilePlayer {
	return &FilePlayer{}
}

// Available reports whether a playback command exists on PATH.
func (p *FilePlayer) Available() error {
	if _, _, err := lookupPlayback(); err != nil {
		return err
	}
	return nil
}

// PlayFile plays the audio file at path and blocks until playback completes
// or ctx is cancelled. Any playback already in flight is stopped first.
func (p *FilePlayer) PlayFile(ctx context.Context, path string) error {
	bin, args, err := lookupPlayback()
	if err != nil {
		return err
	}

	p.Stop()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, append(append([]string{}, args...), path)...)
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("player: %s: %w", bin, err)
	}
	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()
	pidfile.Write(playbackRecord, cmd.Process.Pid)

	err = cmd.Wait()
	pidfile.Clear(playbackRecord, cmd.Process.Pid)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("player: %s: %w: %s", bin, err, stderr.Bytes())
	}
	return nil
}

// Stop kills any in-flight playback, including playback started by another
// process via the on-disk record. Safe to call when nothing is playing.
func (p *FilePlayer) Stop() {
	p.mu.Lock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil
	p.mu.Unlock()

	pidfile.Kill(playbackRecord)
}

// lookupPlayback returns the first playback binary found on PATH.
func lookupPlayback() (bin string, args []string, err error) {
	for _, c := range playbackCommands {
		if path, lookErr := exec.LookPath(c.bin); lookErr == nil {
			return path, c.args, nil
		}
	}
	return "", nil, ErrNoPlaybackCommand
}
