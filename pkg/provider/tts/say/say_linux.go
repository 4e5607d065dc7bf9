//go:build linux

package say

import (
	"fmt"
	"os/exec"

	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

// defaultWPM is the espeak default speaking rate in words per minute.
const defaultWPM = 160

// lookupSpeechBinary finds an espeak binary, preferring espeak-ng.
func lookupSpeechBinary() (string, error) {
	for _, bin := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(bin); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("say: speech not available: install espeak-ng or espeak")
}

// speechArgs builds the argument list for espeak. Rate is a factor on the
// default words-per-minute (1.0 = default).
func speechArgs(opts tts.SpeakOptions, text string) []string {
	var args []string
	if opts.Voice != "" {
		args = append(args, "-v", opts.Voice)
	}
	if opts.Rate > 0 {
		args = append(args, "-s", fmt.Sprintf("%d", int(opts.Rate*defaultWPM)))
	}
	return append(args, text)
}
