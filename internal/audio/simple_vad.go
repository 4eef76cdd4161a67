package audio

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"
)

const (
	// defaultSmoothingAlpha is the exponential smoothing factor (0.0-1.0).
	defaultSmoothingAlpha = 0.3
	// pcmBytesPerSample is the number of bytes per 16-bit PCM sample.
	pcmBytesPerSample = 2
	// pcmMaxAmplitude is the maximum amplitude for 16-bit signed audio.
	pcmMaxAmplitude = 32768.0
	// maxExpectedRMS is the expected maximum RMS for voice audio.
	maxExpectedRMS = 0.5
)

// SimpleVAD is a basic voice activity detector using RMS (Root Mean Square)
// analysis of fixed-size frames (internal/audio.SplitFrames). It backs the
// vad segmenter stage's required analyzer seam (spec §4.6) and needs no
// external model.
type SimpleVAD struct {
	params VADParams

	mu           sync.Mutex
	state        VADState
	stateElapsed time.Duration // audio-time spent in the current state so far

	// Smoothing state
	smoothedRMS float64
	alpha       float64 // Exponential smoothing factor
}

// NewSimpleVAD creates a SimpleVAD analyzer with the given parameters.
func NewSimpleVAD(params VADParams) (*SimpleVAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &SimpleVAD{
		params: params,
		state:  VADStateQuiet,
		alpha:  defaultSmoothingAlpha,
	}, nil
}

// Analyze processes one frame and returns voice probability based on RMS
// volume, advancing the hysteresis state machine by frameDuration of
// audio-time.
func (v *SimpleVAD) Analyze(ctx context.Context, frame []byte, frameDuration time.Duration) (float64, error) {
	if len(frame) == 0 {
		return 0, nil
	}

	rms := calculateRMS(frame)

	// Apply exponential smoothing to reduce noise
	v.mu.Lock()
	v.smoothedRMS = v.alpha*rms + (1-v.alpha)*v.smoothedRMS
	smoothed := v.smoothedRMS
	v.mu.Unlock()

	// Convert RMS to probability (0.0-1.0)
	// Using a simple threshold-based approach
	probability := v.rmsToProbability(smoothed)

	// Update state machine
	v.updateState(probability, frameDuration)

	return probability, nil
}

// calculateRMS computes the Root Mean Square of 16-bit PCM audio samples.
func calculateRMS(frame []byte) float64 {
	if len(frame) < pcmBytesPerSample {
		return 0
	}

	// Process 16-bit little-endian PCM samples
	numSamples := len(frame) / pcmBytesPerSample
	if numSamples == 0 {
		return 0
	}

	var sumSquares float64
	for i := 0; i < numSamples; i++ {
		// #nosec G115 -- overflow is intentional for signed PCM conversion
		sample := int16(binary.LittleEndian.Uint16(frame[i*pcmBytesPerSample:]))
		normalized := float64(sample) / pcmMaxAmplitude // Normalize to -1.0 to 1.0
		sumSquares += normalized * normalized
	}

	return math.Sqrt(sumSquares / float64(numSamples))
}

// rmsToProbability converts RMS to a voice probability.
func (v *SimpleVAD) rmsToProbability(rms float64) float64 {
	if rms <= v.params.MinVolume {
		return 0
	}

	// Scale RMS to 0-1 range, with some headroom
	// Typical voice RMS is 0.05-0.3 for normalized audio
	probability := (rms - v.params.MinVolume) / (maxExpectedRMS - v.params.MinVolume)

	// Clamp to 0-1
	if probability < 0 {
		return 0
	}
	if probability > 1 {
		return 1
	}
	return probability
}

// computeNextState determines the next state based on current state and probability.
// This is a pure function to reduce cognitive complexity of the state machine.
func (v *SimpleVAD) computeNextState(
	current VADState, probability float64, stateElapsedSecs float64,
) VADState {
	aboveThreshold := probability >= v.params.Confidence

	switch current {
	case VADStateQuiet:
		if aboveThreshold {
			return VADStateStarting
		}
	case VADStateStarting:
		if !aboveThreshold {
			return VADStateQuiet
		}
		if stateElapsedSecs >= v.params.StartSecs {
			return VADStateSpeaking
		}
	case VADStateSpeaking:
		if !aboveThreshold {
			return VADStateStopping
		}
	case VADStateStopping:
		if aboveThreshold {
			return VADStateSpeaking
		}
		if stateElapsedSecs >= v.params.StopSecs {
			return VADStateQuiet
		}
	}
	return current
}

// updateState implements the VAD state machine, advancing by one frame's
// worth of audio-time per call rather than by wall-clock elapsed time: the
// segmenter may be draining a file far faster (or slower) than real time,
// and StartSecs/StopSecs are thresholds on speech/silence duration in the
// audio itself, not on how long the process took to get there.
func (v *SimpleVAD) updateState(probability float64, frameDuration time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	newState := v.computeNextState(v.state, probability, v.stateElapsed.Seconds())

	if newState != v.state {
		v.state = newState
		v.stateElapsed = 0
		return
	}
	v.stateElapsed += frameDuration
}

// State returns the current VAD state.
func (v *SimpleVAD) State() VADState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Reset clears accumulated state for a new conversation.
func (v *SimpleVAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state = VADStateQuiet
	v.stateElapsed = 0
	v.smoothedRMS = 0
}
