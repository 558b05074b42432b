package vad

import (
	"math"

	"github.com/petems/whisper-meet/internal/audio"
)

// DefaultThreshold is the RMS level above which a block counts as speech
const DefaultThreshold = 0.02

// ClassifiedBlock is a mono block with its speech decision
type ClassifiedBlock struct {
	audio.Block
	RMS      float64
	IsSpeech bool
}

// Downmix averages interleaved frames into mono, reusing dst when it has capacity.
// A mono input is copied, never aliased.
func Downmix(dst, interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		dst = grow(dst, len(interleaved))
		copy(dst, interleaved)
		return dst
	}

	frames := len(interleaved) / channels
	dst = grow(dst, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += interleaved[base+c]
		}
		dst[i] = sum / float32(channels)
	}
	return dst
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

// RMS returns sqrt(mean(sample^2)) of a mono block
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Classify scores a block. Multi-channel blocks are mixed to mono into scratch
// first; the returned block is always mono. A block at exactly threshold is silence.
func Classify(block audio.Block, threshold float64, scratch []float32) ClassifiedBlock {
	if block.Channels > 1 {
		block.Samples = Downmix(scratch, block.Samples, block.Channels)
		block.Channels = 1
	}
	rms := RMS(block.Samples)
	return ClassifiedBlock{
		Block:    block,
		RMS:      rms,
		IsSpeech: rms > threshold,
	}
}
