package tts

// SpeakOptions selects the voice and delivery rate for one utterance.
// Zero values mean "use the provider's default".
type SpeakOptions struct {
	// Voice is the provider-specific voice identifier (e.g., "Samantha" for
	// the platform say command, a voice ID for ElevenLabs, "alloy" for
	// OpenAI).
	Voice string

	// Rate adjusts speaking speed (0.5–2.0, 1.0 = default). Providers that
	// cannot vary rate ignore it.
	Rate float64
}
