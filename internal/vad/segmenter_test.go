package vad

import (
	"math/rand"
	"testing"
	"time"

	"github.com/petems/whisper-meet/internal/audio"
)

const (
	testRate  = 16000
	blockDur  = 50 * time.Millisecond
	blockSize = testRate / 20
	loud      = 0.05
	quiet     = 0.001
)

// feeder drives a segmenter with constant-level blocks on a frame clock
type feeder struct {
	seg   *Segmenter
	ts    time.Duration
	out   []audio.Utterance
	drops int
}

func newFeeder() *feeder {
	return &feeder{seg: NewSegmenter(DefaultParams(testRate))}
}

func (f *feeder) feed(level float32, d time.Duration) {
	for n := int(d / blockDur); n > 0; n-- {
		block := audio.Block{Samples: constant(blockSize, level), Timestamp: f.ts}
		u, reason := f.seg.Push(Classify(block, DefaultThreshold, nil))
		switch reason {
		case ReasonSilence, ReasonMaxLength:
			f.out = append(f.out, u)
		case ReasonDiscarded:
			f.drops++
		}
		f.ts += blockDur
	}
}

func within(got, want, tol time.Duration) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= tol
}

func TestSegmenter_SpeechThenSilence(t *testing.T) {
	f := newFeeder()
	f.feed(loud, 400*time.Millisecond)
	f.feed(quiet, 1200*time.Millisecond)

	if len(f.out) != 1 {
		t.Fatalf("expected exactly one utterance, got %d", len(f.out))
	}
	u := f.out[0]
	if !within(u.Voiced, 400*time.Millisecond, blockDur) {
		t.Errorf("expected voiced span ~400ms, got %v", u.Voiced)
	}
	// 8 speech blocks plus the silence retained until the hangover fired
	// at the block 1.05s after silence started.
	if want := (8 + 21) * blockSize; len(u.Samples) != want {
		t.Errorf("expected %d samples, got %d", want, len(u.Samples))
	}
	if u.Flushed {
		t.Error("hangover utterance must not be marked flushed")
	}
	if f.seg.Recording() {
		t.Error("segmenter should be idle after emitting")
	}
}

func TestSegmenter_ShortBlipDiscarded(t *testing.T) {
	f := newFeeder()
	f.feed(loud, 200*time.Millisecond)
	f.feed(quiet, 30*time.Second)

	if len(f.out) != 0 {
		t.Fatalf("expected no utterance, got %d", len(f.out))
	}
	if f.drops != 1 {
		t.Errorf("expected one discarded span, got %d", f.drops)
	}
	if f.seg.Recording() || f.seg.Buffered() != 0 {
		t.Error("discarded span must leave the segmenter idle and empty")
	}
}

func TestSegmenter_ShortPauseDoesNotSplit(t *testing.T) {
	f := newFeeder()
	f.feed(loud, 400*time.Millisecond)
	f.feed(quiet, 600*time.Millisecond)
	f.feed(loud, 400*time.Millisecond)
	f.feed(quiet, 1200*time.Millisecond)

	if len(f.out) != 1 {
		t.Fatalf("expected one utterance, got %d", len(f.out))
	}
	if !within(f.out[0].Voiced, 1400*time.Millisecond, blockDur) {
		t.Errorf("expected voiced span ~1.4s, got %v", f.out[0].Voiced)
	}
}

func TestSegmenter_FlushMidSpeech(t *testing.T) {
	f := newFeeder()
	f.feed(loud, 500*time.Millisecond)

	u, ok := f.seg.Flush()
	if !ok {
		t.Fatal("expected flush to return the buffered speech")
	}
	if u.Duration() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", u.Duration())
	}
	if !u.Flushed {
		t.Error("expected flushed utterance")
	}

	if _, ok := f.seg.Flush(); ok {
		t.Error("second flush must be empty")
	}
}

func TestSegmenter_FlushBypassesMinimum(t *testing.T) {
	f := newFeeder()
	f.feed(loud, 100*time.Millisecond)
	f.feed(quiet, 200*time.Millisecond)

	u, ok := f.seg.Flush()
	if !ok {
		t.Fatal("expected flush of short recording")
	}
	if u.Duration() != 300*time.Millisecond {
		t.Errorf("expected 300ms, got %v", u.Duration())
	}
}

func TestSegmenter_FlushIdle(t *testing.T) {
	f := newFeeder()
	f.feed(quiet, time.Second)
	if _, ok := f.seg.Flush(); ok {
		t.Fatal("idle segmenter must not flush")
	}
}

func TestSegmenter_ZeroLengthBlockIsNoop(t *testing.T) {
	seg := NewSegmenter(DefaultParams(testRate))
	u, reason := seg.Push(ClassifiedBlock{IsSpeech: true})
	if reason != ReasonNone || u.Samples != nil {
		t.Fatal("zero-length block must be ignored")
	}
	if seg.Recording() {
		t.Fatal("zero-length speech block must not start a recording")
	}
}

func TestSegmenter_HangoverBoundary(t *testing.T) {
	// Exactly one second of elapsed silence is still inside the window.
	seg := NewSegmenter(DefaultParams(testRate))
	speech := ClassifiedBlock{Block: audio.Block{Samples: constant(blockSize, loud)}, IsSpeech: true}
	silence := ClassifiedBlock{Block: audio.Block{Samples: constant(blockSize, quiet)}}

	for i := 0; i < 10; i++ {
		speech.Timestamp = time.Duration(i) * blockDur
		seg.Push(speech)
	}
	silence.Timestamp = 500 * time.Millisecond
	seg.Push(silence)
	silence.Timestamp = 1500 * time.Millisecond
	if _, reason := seg.Push(silence); reason != ReasonNone {
		t.Fatalf("expected no completion at exactly the hangover, got %v", reason)
	}
	silence.Timestamp = 1500*time.Millisecond + time.Millisecond
	if _, reason := seg.Push(silence); reason != ReasonSilence {
		t.Fatalf("expected completion past the hangover, got %v", reason)
	}
}

func TestSegmenter_MaxUtterance(t *testing.T) {
	p := DefaultParams(testRate)
	p.MaxUtterance = time.Second
	f := &feeder{seg: NewSegmenter(p)}
	f.feed(loud, 2500*time.Millisecond)

	if len(f.out) != 2 {
		t.Fatalf("expected two capped utterances, got %d", len(f.out))
	}
	for _, u := range f.out {
		if u.Duration() != time.Second {
			t.Errorf("expected 1s utterance, got %v", u.Duration())
		}
	}
	if f.out[0].Seq != 1 || f.out[1].Seq != 2 {
		t.Errorf("expected sequence 1,2 got %d,%d", f.out[0].Seq, f.out[1].Seq)
	}
}

func TestSegmenter_EmittedBufferIsDetached(t *testing.T) {
	f := newFeeder()
	f.feed(loud, 400*time.Millisecond)
	f.feed(quiet, 1200*time.Millisecond)
	first := f.out[0]
	snapshot := first.Samples[0]

	f.feed(0.5, 400*time.Millisecond)
	if first.Samples[0] != snapshot {
		t.Fatal("new recording overwrote an emitted utterance")
	}
}

// Random block sequences: nothing emitted by the hangover path is shorter
// than the minimum, and emitted samples are exactly the blocks pushed while
// recording.
func TestSegmenter_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		seg := NewSegmenter(DefaultParams(testRate))
		var ts time.Duration
		var pending int

		for i := 0; i < 400; i++ {
			level := float32(quiet)
			if rng.Intn(3) == 0 {
				level = loud
			}
			block := audio.Block{Samples: constant(blockSize, level), Timestamp: ts}
			ts += blockDur

			wasRecording := seg.Recording()
			u, reason := seg.Push(Classify(block, DefaultThreshold, nil))

			switch reason {
			case ReasonSilence:
				if u.Voiced <= DefaultMinUtterance {
					t.Fatalf("run %d: utterance of %v below minimum", run, u.Voiced)
				}
				if len(u.Samples) != pending {
					t.Fatalf("run %d: expected %d samples, got %d", run, pending, len(u.Samples))
				}
				pending = 0
			case ReasonDiscarded:
				pending = 0
			case ReasonNone:
				if seg.Recording() {
					pending += blockSize
				} else if wasRecording {
					t.Fatalf("run %d: left recording without a reason", run)
				}
			}
		}
	}
}
