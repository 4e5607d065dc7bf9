// Package hook is the trigger boundary: it parses the post-response hook
// payload from stdin and hands the full pipeline off to a detached process
// so the hook handler can return immediately.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Payload is the hook event delivered on stdin when an assistant response
// completes.
type Payload struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	CWD            string `json:"cwd"`
}

// ReadPayload decodes a hook payload from r.
func ReadPayload(r io.Reader) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("hook: decode payload: %w", err)
	}
	if p.TranscriptPath == "" {
		return Payload{}, errors.New("hook: payload missing transcript_path")
	}
	return p, nil
}

// Detach re-execs the current binary as a dispatch process in its own
// session, so speech duration never blocks the hook handler. The child
// inherits no stdio.
func Detach(p Payload) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("hook: resolve executable: %w", err)
	}

	cmd := exec.Command(exe, "dispatch",
		"--session", p.SessionID,
		"--transcript", p.TranscriptPath,
	)
	if p.CWD != "" {
		cmd.Dir = p.CWD
	}
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("hook: start dispatch process: %w", err)
	}
	return cmd.Process.Release()
}
