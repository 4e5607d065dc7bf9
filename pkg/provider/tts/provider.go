// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps either a speech synthesis service (e.g., ElevenLabs,
// OpenAI) or a local facility (the platform speech command, a local
// Chatterbox server) and presents a uniform capability set: probe for
// availability, speak one utterance, cancel in-flight audio.
//
// Exactly one backend is the baseline provider — the one that needs no
// network access or credentials and is available whenever the host platform
// can produce audio at all. Every other provider's failure falls back to it.
package tts

import "context"

// BaselineName is the registry name of the baseline provider. The baseline
// is the universal fallback target; its own failures have nothing left to
// fall back to.
const BaselineName = "say"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use: an overlapping dispatch
// cycle may call Cancel while a previous Speak is still playing.
type Provider interface {
	// Name returns the registry name of this backend (e.g., "say",
	// "elevenlabs").
	Name() string

	// Probe reports whether the backend can currently speak. It must be
	// fast and side-effect-bounded; it may lazily start a local resource
	// (such as a local synthesis server) but must not play audio. A nil
	// return means the backend is available.
	Probe(ctx context.Context) error

	// Speak synthesises and plays text to completion. Implementations must
	// begin by cancelling their own in-flight audio so overlapping cycles
	// never talk over each other. Speak blocks until playback finishes or
	// ctx is cancelled.
	Speak(ctx context.Context, text string, opts SpeakOptions) error

	// Cancel stops any in-flight audio. It is best-effort and must be safe
	// to call when nothing is playing.
	Cancel(ctx context.Context) error
}
