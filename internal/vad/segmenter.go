package vad

import (
	"time"

	"github.com/petems/whisper-meet/internal/audio"
)

const (
	// DefaultHangover is the trailing silence that ends an utterance
	DefaultHangover = time.Second
	// DefaultMinUtterance is the shortest span emitted; anything shorter is noise
	DefaultMinUtterance = 300 * time.Millisecond
)

// Reason explains why an utterance was completed
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonSilence: the trailing silence exceeded the hangover
	ReasonSilence
	// ReasonMaxLength: the buffer reached MaxUtterance
	ReasonMaxLength
	// ReasonDiscarded: the hangover fired but the span was below MinUtterance
	ReasonDiscarded
	// ReasonFlush: Flush was called while recording
	ReasonFlush
)

func (r Reason) String() string {
	switch r {
	case ReasonSilence:
		return "silence"
	case ReasonMaxLength:
		return "max"
	case ReasonDiscarded:
		return "discarded"
	case ReasonFlush:
		return "flush"
	default:
		return "none"
	}
}

// Params configures a Segmenter. Zero durations fall back to the defaults,
// except MaxUtterance where zero means unlimited.
type Params struct {
	SampleRate   int
	Hangover     time.Duration
	MinUtterance time.Duration
	MaxUtterance time.Duration
}

// DefaultParams returns the capture defaults for a sample rate
func DefaultParams(sampleRate int) Params {
	return Params{
		SampleRate:   sampleRate,
		Hangover:     DefaultHangover,
		MinUtterance: DefaultMinUtterance,
	}
}

// state is owned by the capture callback; nothing else touches it
type state struct {
	recording    bool
	buffer       []float32
	startTime    time.Duration
	speechEnd    time.Duration
	silenceStart time.Duration
	inSilence    bool
}

// Segmenter turns classified blocks into utterances using trailing-silence hysteresis.
// It is not safe for concurrent use: exactly one goroutine may call Push and Flush.
type Segmenter struct {
	params  Params
	capHint int
	seq     uint64
	st      state
}

// NewSegmenter creates an idle segmenter
func NewSegmenter(p Params) *Segmenter {
	if p.Hangover <= 0 {
		p.Hangover = DefaultHangover
	}
	if p.MinUtterance <= 0 {
		p.MinUtterance = DefaultMinUtterance
	}
	// Pre-size for a few seconds of speech so the callback rarely grows the buffer.
	capHint := p.SampleRate * 5
	if capHint <= 0 {
		capHint = 16000 * 5
	}
	return &Segmenter{params: p, capHint: capHint}
}

// Params returns the effective parameters
func (s *Segmenter) Params() Params {
	return s.params
}

// Recording reports whether an utterance is in progress
func (s *Segmenter) Recording() bool {
	return s.st.recording
}

// Buffered returns the number of samples held for the in-progress utterance
func (s *Segmenter) Buffered() int {
	return len(s.st.buffer)
}

// Push feeds one block in arrival order. It returns a completed utterance
// and ReasonSilence or ReasonMaxLength when one fires, ReasonDiscarded when a
// too-short span was dropped, and ReasonNone otherwise.
func (s *Segmenter) Push(b ClassifiedBlock) (audio.Utterance, Reason) {
	if len(b.Samples) == 0 {
		return audio.Utterance{}, ReasonNone
	}
	ts := b.Timestamp

	if b.IsSpeech {
		if !s.st.recording {
			s.begin(ts)
		}
		s.st.speechEnd = ts + audio.SamplesDuration(len(b.Samples), s.params.SampleRate)
		s.st.inSilence = false
		s.appendBlock(b.Samples)

		if s.params.MaxUtterance > 0 && s.bufferedDuration() >= s.params.MaxUtterance {
			u := s.take(false)
			return u, ReasonMaxLength
		}
		return audio.Utterance{}, ReasonNone
	}

	if !s.st.recording {
		return audio.Utterance{}, ReasonNone
	}

	if !s.st.inSilence {
		s.st.inSilence = true
		s.st.silenceStart = ts
		s.appendBlock(b.Samples)
		return audio.Utterance{}, ReasonNone
	}

	elapsed := ts - s.st.silenceStart
	if elapsed > s.params.Hangover && len(s.st.buffer) > 0 {
		if s.voiced() > s.params.MinUtterance {
			return s.take(false), ReasonSilence
		}
		s.Reset()
		return audio.Utterance{}, ReasonDiscarded
	}

	s.appendBlock(b.Samples)
	return audio.Utterance{}, ReasonNone
}

// Flush returns whatever is buffered, ignoring hangover and minimum length.
// ok is false when nothing was in progress.
func (s *Segmenter) Flush() (u audio.Utterance, ok bool) {
	if !s.st.recording || len(s.st.buffer) == 0 {
		s.Reset()
		return audio.Utterance{}, false
	}
	return s.take(true), true
}

// Reset drops any in-progress utterance
func (s *Segmenter) Reset() {
	s.st.recording = false
	s.st.inSilence = false
	s.st.silenceStart = 0
	s.st.buffer = s.st.buffer[:0]
}

func (s *Segmenter) begin(ts time.Duration) {
	s.st.recording = true
	s.st.buffer = s.st.buffer[:0]
	s.st.startTime = ts
	s.st.speechEnd = ts
	s.st.inSilence = false
	if s.st.buffer == nil {
		s.st.buffer = make([]float32, 0, s.capHint)
	}
}

func (s *Segmenter) appendBlock(samples []float32) {
	s.st.buffer = append(s.st.buffer, samples...)
}

// voiced excludes trailing silence so a short blip followed by the hangover
// never qualifies on the strength of its own silence.
func (s *Segmenter) voiced() time.Duration {
	return s.st.speechEnd - s.st.startTime
}

func (s *Segmenter) bufferedDuration() time.Duration {
	return audio.SamplesDuration(len(s.st.buffer), s.params.SampleRate)
}

// take hands the buffer to the caller and starts a fresh one, since the
// utterance outlives the segmenter state.
func (s *Segmenter) take(flushed bool) audio.Utterance {
	s.seq++
	u := audio.Utterance{
		Seq:        s.seq,
		Samples:    s.st.buffer,
		SampleRate: s.params.SampleRate,
		Start:      s.st.startTime,
		Voiced:     s.voiced(),
		Flushed:    flushed,
	}
	s.st.buffer = nil
	s.Reset()
	return u
}
