//go:build !darwin && !linux

package say

import (
	"errors"

	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

// lookupSpeechBinary reports that no platform speech command exists.
func lookupSpeechBinary() (string, error) {
	return "", errors.New("say: no platform speech command on this OS")
}

func speechArgs(_ tts.SpeakOptions, text string) []string {
	return []string{text}
}
