// Package tts defines the external text-to-speech collaborator seam the
// TTS exemplar stage (internal/stages/tts) consumes. Grounded on the
// teacher's runtime/tts/service.go (Service interface, SynthesisConfig,
// Voice/AudioFormat) and runtime/tts/openai.go (HTTP request shape,
// functional options) — backends remain external collaborators per
// spec §1/§6.
package tts

import "context"

// SynthesisConfig configures a Synthesize call.
type SynthesisConfig struct {
	Voice      string
	SampleRate int
	Speed      float64
}

// DefaultSynthesisConfig returns sensible defaults.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{Voice: "alloy", SampleRate: 48000, Speed: 1.0}
}

// Synthesizer converts text to PCM16LE audio. Backends return the full
// synthesized buffer; streaming backends are out of scope (the spec's
// audio baseline, §6, assumes a stage can always resample/repacketize its
// boundary, which a buffered backend satisfies).
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string, cfg SynthesisConfig) ([]byte, error)
}
