package whisper

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Prepare returns a peak-normalised copy of samples. Silent input is copied unchanged.
func Prepare(samples []float32) []float32 {
	out := make([]float32, len(samples))
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak == 0 {
		copy(out, samples)
		return out
	}
	gain := 1 / peak
	for i, s := range samples {
		out[i] = s * gain
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. Matching rates return the input unchanged.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		s0 := samples[idx]
		s1 := s0
		if idx+1 < len(samples) {
			s1 = samples[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// Filter drops segments that are too short to be real speech: trimmed text
// under minRunes runes, or a duration no longer than minDuration.
func Filter(segments []Segment, minDuration time.Duration, minRunes int) []Segment {
	out := segments[:0:0]
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if utf8.RuneCountInString(text) < minRunes {
			continue
		}
		if s.Duration() <= minDuration {
			continue
		}
		s.Text = text
		out = append(out, s)
	}
	return out
}
