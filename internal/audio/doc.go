// Package audio provides voice activity detection (VAD) and PCM16 sample
// rate conversion for the segmenter stage's audio framing.
//
// # Architecture
//
// VADAnalyzer detects voice activity in a stream of raw PCM16 frames; after
// each Analyze call, State reports the analyzer's current hysteresis state
// (quiet/starting/speaking/stopping). ResamplePCM16 normalizes incoming
// audio to the analyzer's configured sample rate before analysis.
//
// # Usage Example
//
//	vad, _ := audio.NewSimpleVAD(audio.DefaultVADParams())
//	for _, frame := range audio.SplitFrames(pcm) {
//	    if _, err := vad.Analyze(ctx, frame, audio.FrameDuration); err == nil {
//	        // react to vad.State()
//	    }
//	}
package audio
