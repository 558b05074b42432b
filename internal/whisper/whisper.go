package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"github.com/petems/whisper-meet/internal/config"
)

// SampleRate is the only rate the model accepts
const SampleRate = whisper.SampleRate

// Segment is one timed piece of recognised text
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Duration returns the segment length
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// Options configures one transcription call
type Options struct {
	Language    string
	Temperature float32
	Threads     int
	BeamSize    int
}

// OptionsFrom maps the whisper config section to call options
func OptionsFrom(cfg config.WhisperConfig) Options {
	return Options{
		Language:    cfg.Language,
		Temperature: cfg.Temperature,
		Threads:     cfg.Threads,
		BeamSize:    cfg.BeamSize,
	}
}

// Transcriber interface for speech-to-text
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, opts Options) ([]Segment, error)
	Close() error
}

type whisperTranscriber struct {
	model whisper.Model
	log   zerolog.Logger
	mu    sync.Mutex
}

// New loads the configured model, downloading it on first use
func New(ctx context.Context, cfg config.WhisperConfig, log zerolog.Logger) (Transcriber, error) {
	modelPath, err := ensureModel(ctx, cfg.Model, log)
	if err != nil {
		return nil, err
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	log.Info().Str("model", cfg.Model).Str("path", modelPath).Msg("Whisper model loaded")

	return &whisperTranscriber{
		model: model,
		log:   log,
	}, nil
}

func ensureModel(ctx context.Context, model string, log zerolog.Logger) (string, error) {
	modelPath := filepath.Join(config.ModelsPath(), "ggml-"+model+".bin")

	// Check if model exists, download if needed
	if _, err := os.Stat(modelPath); errors.Is(err, os.ErrNotExist) {
		if err := downloadModel(ctx, modelURL(model), model, modelPath, log); err != nil {
			return "", fmt.Errorf("failed to download model: %w", err)
		}
	}
	return modelPath, nil
}

// Transcribe runs a fresh whisper context over samples. Nothing carries over
// between calls, so consecutive utterances never condition each other.
func (w *whisperTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int, opts Options) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	if sampleRate != SampleRate {
		w.log.Debug().Int("from", sampleRate).Int("to", SampleRate).Msg("Resampling audio for whisper")
		samples = Resample(samples, sampleRate, SampleRate)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil, errors.New("whisper model is closed")
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	// Set parameters
	if opts.Threads > 0 {
		wctx.SetThreads(uint(opts.Threads))
	}
	if opts.Language != "" {
		if err := wctx.SetLanguage(opts.Language); err != nil {
			return nil, fmt.Errorf("failed to set language %q: %w", opts.Language, err)
		}
	}
	if opts.BeamSize > 0 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	wctx.SetTemperature(opts.Temperature)
	wctx.SetTranslate(false)
	wctx.SetMaxContext(0)

	// The encoder callback aborts the run when the caller gives up
	abort := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, abort, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper process failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Get transcription segments
	var segments []Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return segments, fmt.Errorf("failed to read segment: %w", err)
		}
		segments = append(segments, Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  strings.TrimSpace(segment.Text),
		})
	}

	return segments, nil
}

func (w *whisperTranscriber) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		w.model.Close()
		w.model = nil
	}
	return nil
}
