//go:build darwin

package say

import (
	"fmt"
	"os/exec"

	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

// defaultWPM is the macOS say default speaking rate in words per minute.
const defaultWPM = 175

// lookupSpeechBinary finds the macOS speech command.
func lookupSpeechBinary() (string, error) {
	path, err := exec.LookPath("say")
	if err != nil {
		return "", fmt.Errorf("say: speech not available: %w", err)
	}
	return path, nil
}

// speechArgs builds the argument list for the say command. Rate is a factor
// on the default words-per-minute (1.0 = default).
func speechArgs(opts tts.SpeakOptions, text string) []string {
	var args []string
	if opts.Voice != "" {
		args = append(args, "-v", opts.Voice)
	}
	if opts.Rate > 0 {
		args = append(args, "-r", fmt.Sprintf("%d", int(opts.Rate*defaultWPM)))
	}
	return append(args, text)
}
