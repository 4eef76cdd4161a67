package audio

import "time"

// FrameSamples is the fixed frame size (in 16-bit samples) the VAD
// segmenter stage analyzes at a time, at FrameSampleRate.
const (
	FrameSamples    = 512
	FrameSampleRate = SampleRate16kHz
)

// FrameBytes is the byte length of one FrameSamples-sample PCM16 frame.
const FrameBytes = FrameSamples * 2

// FrameDuration is the audio-time span one FrameSamples-sample frame
// covers at FrameSampleRate. VADAnalyzer.Analyze is always called with
// this duration, since SplitFrames zero-pads every frame to FrameBytes.
const FrameDuration = time.Second * FrameSamples / FrameSampleRate

// SplitFrames splits PCM16 audio into fixed FrameBytes-sized frames,
// zero-padding the final, possibly-short frame so every frame the VAD
// analyzer sees is uniform. pcm must already be at FrameSampleRate.
func SplitFrames(pcm []byte) [][]byte {
	if len(pcm) == 0 {
		return nil
	}

	n := (len(pcm) + FrameBytes - 1) / FrameBytes
	frames := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := i * FrameBytes
		end := start + FrameBytes
		if end > len(pcm) {
			frame := make([]byte, FrameBytes)
			copy(frame, pcm[start:])
			frames[i] = frame
			continue
		}
		frames[i] = pcm[start:end]
	}
	return frames
}
