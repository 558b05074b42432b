package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/petems/whisper-meet/internal/audio"
	"github.com/petems/whisper-meet/internal/handoff"
	"github.com/petems/whisper-meet/internal/metrics"
	"github.com/petems/whisper-meet/internal/vad"
)

var (
	// ErrDeviceUnavailable means the device could not be opened
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrStreamFailure means the stream opened but would not start
	ErrStreamFailure = errors.New("audio stream failed to start")
	// ErrSessionStarted is returned by Start on a running session
	ErrSessionStarted = errors.New("capture session already started")
)

// DefaultBlock is the capture block duration
const DefaultBlock = 50 * time.Millisecond

// Config wires a Session. Params and Threshold are fixed for its lifetime.
type Config struct {
	Driver    audio.Driver
	Out       *handoff.Slot[audio.Utterance]
	Params    vad.Params
	Threshold float64
	Block     time.Duration
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics // Optional
}

// Stats are counters readable from any goroutine
type Stats struct {
	Blocks       uint64
	SpeechBlocks uint64
	Utterances   uint64
	Discarded    uint64
	Dropped      uint64
	Overflows    uint64
	Flushed      uint64
}

// Session owns one hardware stream and runs classify -> segment -> handoff
// on every callback.
type Session struct {
	driver    audio.Driver
	out       *handoff.Slot[audio.Utterance]
	threshold float64
	block     time.Duration
	params    vad.Params
	log       zerolog.Logger
	rtLog     zerolog.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	id      string
	stream  audio.Stream
	running bool

	accepting atomic.Bool

	// callback-owned
	seg         *vad.Segmenter
	scratch     []float32
	channels    int
	frames      int64
	clockSet    bool
	deviceClock bool

	blocks       atomic.Uint64
	speechBlocks atomic.Uint64
	utterances   atomic.Uint64
	discarded    atomic.Uint64
	overflows    atomic.Uint64
	flushed      atomic.Uint64
}

// New creates an idle session
func New(cfg Config) *Session {
	block := cfg.Block
	if block <= 0 {
		block = DefaultBlock
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = vad.DefaultThreshold
	}
	return &Session{
		driver:    cfg.Driver,
		out:       cfg.Out,
		threshold: threshold,
		block:     block,
		params:    cfg.Params,
		log:       cfg.Logger,
		rtLog:     cfg.Logger.Sample(&zerolog.BurstSampler{Burst: 1, Period: time.Second}),
		metrics:   cfg.Metrics,
	}
}

// ID identifies the current (or last) stream in logs
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Running reports whether the stream is active
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start opens and starts a mono stream on device
func (s *Session) Start(device audio.DeviceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSessionStarted
	}

	s.seg = vad.NewSegmenter(s.params)
	s.channels = 1
	s.frames = 0
	s.clockSet = false
	s.id = uuid.NewString()

	frames := audio.BlockFrames(s.params.SampleRate, s.block)
	s.scratch = make([]float32, 0, frames)

	stream, err := s.driver.Open(audio.StreamParams{
		Device:         device,
		Channels:       s.channels,
		SampleRate:     s.params.SampleRate,
		FramesPerBlock: frames,
	}, s.onBlock)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s.accepting.Store(true)
	if err := stream.Start(); err != nil {
		s.accepting.Store(false)
		stream.Close()
		return fmt.Errorf("%w: %v", ErrStreamFailure, err)
	}

	s.stream = stream
	s.running = true

	s.log.Info().
		Str("session", s.id).
		Str("device", device.Name).
		Int("sample_rate", s.params.SampleRate).
		Int("block_frames", frames).
		Msg("Audio capture started")
	return nil
}

// Stop ends capture and flushes any in-progress utterance to the handoff slot.
// Calling it again is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.accepting.Store(false)

	var errs []error
	stopped := true
	if err := s.stream.Stop(); err != nil {
		stopped = false
		errs = append(errs, fmt.Errorf("failed to stop audio stream: %w", err))
	}

	// Only a stopped stream guarantees the callback is done with the segmenter.
	if !stopped {
		s.log.Warn().Str("session", s.id).Msg("Stream did not stop cleanly, trailing speech not flushed")
	} else if u, ok := s.seg.Flush(); ok {
		s.flushed.Add(1)
		s.emit(u, metrics.ReasonFlush)
		s.log.Info().Str("session", s.id).Dur("duration", u.Duration()).Msg("Flushed trailing speech")
	}

	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audio stream: %w", err))
	}
	s.stream = nil

	st := s.Stats()
	s.log.Info().
		Str("session", s.id).
		Uint64("blocks", st.Blocks).
		Uint64("utterances", st.Utterances).
		Uint64("discarded", st.Discarded).
		Uint64("dropped", st.Dropped).
		Uint64("overflows", st.Overflows).
		Bool("pending", s.out.Pending()).
		Msg("Audio capture stopped")

	return errors.Join(errs...)
}

// Stats returns a snapshot of the counters
func (s *Session) Stats() Stats {
	return Stats{
		Blocks:       s.blocks.Load(),
		SpeechBlocks: s.speechBlocks.Load(),
		Utterances:   s.utterances.Load(),
		Discarded:    s.discarded.Load(),
		Dropped:      s.out.Dropped(),
		Overflows:    s.overflows.Load(),
		Flushed:      s.flushed.Load(),
	}
}

// onBlock runs on the audio thread. It must not block, so everything here is
// bounded: classify, one segmenter step and at most one non-blocking push.
func (s *Session) onBlock(samples []float32, adc time.Duration, flags audio.StatusFlags) {
	if !s.accepting.Load() {
		return
	}
	ctx := context.Background()

	if flags.Has(audio.InputOverflow) {
		s.overflows.Add(1)
		if s.metrics != nil {
			s.metrics.InputOverflows.Add(ctx, 1)
		}
		s.rtLog.Warn().Str("session", s.id).Msg("Audio input overflow")
	}
	if len(samples) == 0 {
		return
	}

	block := audio.Block{Samples: samples, Channels: s.channels}
	block.Timestamp = s.timestamp(adc, block.Frames())

	cb := vad.Classify(block, s.threshold, s.scratch)
	s.blocks.Add(1)
	if s.metrics != nil {
		s.metrics.Blocks.Add(ctx, 1)
	}
	if cb.IsSpeech {
		s.speechBlocks.Add(1)
		if s.metrics != nil {
			s.metrics.SpeechBlocks.Add(ctx, 1)
		}
	}

	u, reason := s.seg.Push(cb)
	switch reason {
	case vad.ReasonSilence:
		s.emit(u, metrics.ReasonSilence)
	case vad.ReasonMaxLength:
		s.emit(u, metrics.ReasonMax)
	case vad.ReasonDiscarded:
		s.discarded.Add(1)
		if s.metrics != nil {
			s.metrics.Discarded.Add(ctx, 1)
		}
	}
}

// timestamp returns the device ADC time when the driver provides one on the
// first block, otherwise a frame clock. The choice holds for the whole stream.
func (s *Session) timestamp(adc time.Duration, frames int) time.Duration {
	if !s.clockSet {
		s.clockSet = true
		s.deviceClock = adc > 0
	}
	if s.deviceClock {
		return adc
	}
	ts := audio.SamplesDuration(int(s.frames), s.params.SampleRate)
	s.frames += int64(frames)
	return ts
}

func (s *Session) emit(u audio.Utterance, reason metric.MeasurementOption) {
	ctx := context.Background()
	s.utterances.Add(1)
	if s.metrics != nil {
		s.metrics.Utterances.Add(ctx, 1, reason)
		s.metrics.UtteranceDuration.Record(ctx, u.Duration().Seconds())
	}

	if s.out.TryPush(u) {
		if s.metrics != nil {
			s.metrics.HandoffDrops.Add(ctx, 1)
		}
		s.rtLog.Warn().Str("session", s.id).Msg("Consumer is behind, dropped pending utterance")
	}

	s.log.Debug().
		Str("session", s.id).
		Uint64("seq", u.Seq).
		Dur("duration", u.Duration()).
		Dur("voiced", u.Voiced).
		Msg("Utterance completed")
}
