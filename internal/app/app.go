package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/petems/whisper-meet/internal/assist"
	"github.com/petems/whisper-meet/internal/audio"
	"github.com/petems/whisper-meet/internal/capture"
	"github.com/petems/whisper-meet/internal/clip"
	"github.com/petems/whisper-meet/internal/config"
	"github.com/petems/whisper-meet/internal/handoff"
	"github.com/petems/whisper-meet/internal/hotkey"
	"github.com/petems/whisper-meet/internal/metrics"
	"github.com/petems/whisper-meet/internal/transcript"
	"github.com/petems/whisper-meet/internal/vad"
	"github.com/petems/whisper-meet/internal/whisper"
)

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetListening()
	SetProcessing()
	SetError()
}

type Config struct {
	Driver        audio.Driver
	Transcriber   whisper.Transcriber
	Assistant     assist.Assistant
	Clipboard     clip.Writer    // Optional
	Hotkeys       hotkey.Manager // Optional
	Config        *config.Config
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics // Optional
	StatusUpdater StatusUpdater    // Optional - can be nil
	Output        io.Writer        // Transcripts and answers; defaults to stdout
}

type App struct {
	driver    audio.Driver
	stt       whisper.Transcriber
	assistant assist.Assistant
	clip      clip.Writer
	hotkeys   hotkey.Manager
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	status    StatusUpdater

	history  *transcript.Store
	slot     *handoff.Slot[audio.Utterance]
	session  *capture.Session
	consumer *capture.Consumer

	outMu sync.Mutex
	out   io.Writer

	mu           sync.Mutex
	started      bool
	copyAnswers  bool
	stopConsumer context.CancelFunc
	cancelWork   context.CancelFunc
	consumerDone chan struct{}

	done         chan struct{}
	quitOnce     sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
}

func New(cfg Config) *App {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	clipboard := cfg.Clipboard
	if clipboard == nil {
		clipboard = clip.Nop{}
	}

	a := &App{
		driver:      cfg.Driver,
		stt:         cfg.Transcriber,
		assistant:   cfg.Assistant,
		clip:        clipboard,
		hotkeys:     cfg.Hotkeys,
		cfg:         cfg.Config,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		status:      cfg.StatusUpdater,
		out:         out,
		copyAnswers: cfg.Config.CopyToClipboard,
		done:        make(chan struct{}),
	}

	a.history = transcript.NewStore(a.cfg.Transcript.Path, a.cfg.Transcript.MaxItems, a.log)
	a.slot = handoff.NewSlot[audio.Utterance]()
	a.session = capture.New(capture.Config{
		Driver: a.driver,
		Out:    a.slot,
		Params: vad.Params{
			SampleRate:   a.cfg.SampleRate,
			Hangover:     a.cfg.Segmenter.Hangover(),
			MinUtterance: a.cfg.Segmenter.MinUtterance(),
			MaxUtterance: a.cfg.Segmenter.MaxUtterance(),
		},
		Threshold: a.cfg.Segmenter.Threshold,
		Block:     a.cfg.Block(),
		Logger:    a.log,
		Metrics:   a.metrics,
	})
	a.consumer = capture.NewConsumer(a.slot, capture.ProcessorFunc(a.process), a.cfg.Segmenter.Poll(), a.log)
	return a
}

// SetStatusUpdater sets the status sink (for circular dependency resolution with the tray)
func (a *App) SetStatusUpdater(s StatusUpdater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// Start resolves the input device, begins capture and launches the consumer
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return capture.ErrSessionStarted
	}

	devices, err := a.driver.Devices()
	if err != nil {
		return err
	}
	def, ok := a.driver.DefaultInput()
	if !ok {
		def = -1
	}
	device, err := audio.Resolve(a.cfg.Audio.DeviceID, devices, def, a.log)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The consumer outlives ctx: it only stops through Shutdown so the final
	// flushed utterance is still transcribed.
	stop, stopConsumer := context.WithCancel(context.Background())
	work, cancelWork := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.consumer.Run(stop, work)
	}()

	if err := a.session.Start(device); err != nil {
		stopConsumer()
		cancelWork()
		<-done
		a.setStatusLocked(StatusUpdater.SetError)
		return err
	}

	a.started = true
	a.stopConsumer = stopConsumer
	a.cancelWork = cancelWork
	a.consumerDone = done

	a.registerHotkeys()
	a.setStatusLocked(StatusUpdater.SetListening)

	a.log.Info().
		Str("device", device.Name).
		Str("model", a.cfg.Whisper.Model).
		Str("language", a.cfg.Whisper.Language).
		Msg("Listening")
	return nil
}

// Run starts the app and blocks until ctx is done or Quit is called, serving
// metrics alongside when an address is configured. It always shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	// Quit from a hotkey or the tray leaves ctx live, so the metrics server
	// is stopped through this cancel.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if addr := a.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, addr, a.log)
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-a.done:
		}
		a.Quit()
		defer cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()
		return a.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) registerHotkeys() {
	if a.hotkeys == nil {
		return
	}
	bindings := []struct {
		accel string
		fn    func()
	}{
		{a.cfg.Hotkeys.Suggest, func() { a.async("suggestions", a.Suggest) }},
		{a.cfg.Hotkeys.Summary, func() { a.async("summary", a.Summarize) }},
		{a.cfg.Hotkeys.Clear, func() { a.Clear() }},
		{a.cfg.Hotkeys.Quit, a.Quit},
	}
	for _, b := range bindings {
		if b.accel == "" {
			continue
		}
		if err := a.hotkeys.Register(b.accel, b.fn); err != nil {
			a.log.Warn().Err(err).Str("hotkey", b.accel).Msg("Failed to register hotkey")
			continue
		}
		a.log.Info().Str("hotkey", b.accel).Msg("Registered hotkey")
	}
}

// async runs an assistant call off the caller's goroutine (hotkey and tray
// event loops must not block on the network)
func (a *App) async(name string, fn func(context.Context) (string, error)) {
	go func() {
		if _, err := fn(context.Background()); err != nil {
			a.log.Warn().Err(err).Str("action", name).Msg("Assistant request failed")
		}
	}()
}

// process is the consumer's per-utterance work: prepare, transcribe, filter, store
func (a *App) process(ctx context.Context, u audio.Utterance) error {
	a.setStatus(StatusUpdater.SetProcessing)

	start := time.Now()
	segments, err := a.stt.Transcribe(ctx, whisper.Prepare(u.Samples), u.SampleRate, whisper.OptionsFrom(a.cfg.Whisper))
	if a.metrics != nil {
		a.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		a.setStatus(StatusUpdater.SetError)
		return fmt.Errorf("transcription failed: %w", err)
	}

	minSeg := time.Duration(a.cfg.Whisper.MinSegmentMs) * time.Millisecond
	kept := whisper.Filter(segments, minSeg, a.cfg.Whisper.MinTextRunes)
	for _, s := range kept {
		e := a.history.Add(s.Text)
		a.printf("%s\n", e.Line())
	}

	a.log.Info().
		Uint64("seq", u.Seq).
		Dur("audio", u.Duration()).
		Dur("elapsed", time.Since(start)).
		Int("segments", len(segments)).
		Int("kept", len(kept)).
		Msg("Transcribed utterance")

	a.setStatus(StatusUpdater.SetListening)
	return nil
}

// Suggest asks the assistant for next steps based on the recent conversation
func (a *App) Suggest(ctx context.Context) (string, error) {
	return a.ask(ctx, "💡 SUGGERIMENTI AI", a.assistant.Suggest)
}

// Summarize asks the assistant for a summary of the whole conversation
func (a *App) Summarize(ctx context.Context) (string, error) {
	return a.ask(ctx, "📋 RIASSUNTO MEETING", a.assistant.Summarize)
}

// AssistantReady reports whether suggestions and summaries can be requested
func (a *App) AssistantReady() bool {
	return a.assistant != nil && a.assistant.Configured()
}

func (a *App) ask(ctx context.Context, title string, fn func(context.Context, []string) (string, error)) (string, error) {
	if !a.AssistantReady() {
		return "", assist.ErrNotConfigured
	}
	answer, err := fn(ctx, a.history.All())
	if err != nil {
		return "", err
	}

	a.printf("\n%s\n%s\n\n", title, answer)

	if a.CopyAnswers() {
		if err := a.clip.Write(answer); err != nil {
			a.log.Warn().Err(err).Msg("Failed to copy answer")
		}
	}
	return answer, nil
}

// Clear drops the conversation history and returns how many lines were removed
func (a *App) Clear() int {
	n := a.history.Clear()
	a.log.Info().Int("removed", n).Msg("Conversation cleared")
	return n
}

// History returns the held conversation, oldest first
func (a *App) History() []string {
	return a.history.All()
}

// SetCopyAnswers toggles copying assistant answers to the clipboard
func (a *App) SetCopyAnswers(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.copyAnswers = on
}

func (a *App) CopyAnswers() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyAnswers
}

// Stats returns the capture counters
func (a *App) Stats() capture.Stats {
	return a.session.Stats()
}

// Quit asks Run to return. Safe to call more than once.
func (a *App) Quit() {
	a.quitOnce.Do(func() { close(a.done) })
}

// Done is closed once Quit has been called
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Shutdown stops capture (flushing any speech in progress), lets the consumer
// finish the in-flight and pending utterances, and waits for it. If ctx ends
// first the in-flight call is cancelled. Later calls return the first result.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown(ctx)
	})
	return a.shutdownErr
}

func (a *App) shutdown(ctx context.Context) error {
	a.mu.Lock()
	started := a.started
	a.started = false
	a.mu.Unlock()

	var errs []error
	if a.hotkeys != nil {
		if err := a.hotkeys.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if !started {
		return errors.Join(errs...)
	}

	if err := a.session.Stop(); err != nil {
		errs = append(errs, err)
	}

	a.stopConsumer()
	select {
	case <-a.consumerDone:
	case <-ctx.Done():
		a.log.Warn().Msg("Shutdown deadline reached, abandoning in-flight transcription")
		a.cancelWork()
		<-a.consumerDone
		errs = append(errs, ctx.Err())
	}
	a.cancelWork()

	st := a.session.Stats()
	a.log.Info().
		Uint64("utterances", st.Utterances).
		Uint64("processed", a.consumer.Processed()).
		Uint64("failed", a.consumer.Failed()).
		Uint64("dropped", st.Dropped).
		Msg("Shutdown complete")

	a.setStatus(StatusUpdater.SetIdle)
	return errors.Join(errs...)
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) setStatus(fn func(StatusUpdater)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setStatusLocked(fn)
}

func (a *App) setStatusLocked(fn func(StatusUpdater)) {
	if a.status != nil {
		fn(a.status)
	}
}
