package tray

import (
	"context"
	"fmt"
	"time"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/whisper-meet/internal/app"
	"github.com/petems/whisper-meet/internal/config"
)

// assistTimeout bounds a menu-triggered assistant call
const assistTimeout = time.Minute

type UI struct {
	app     *app.App
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger
	onQuit  func()

	// Menu items
	mSuggest *systray.MenuItem
	mSummary *systray.MenuItem
	mClear   *systray.MenuItem
	mCopy    *systray.MenuItem
	mQuit    *systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus("idle")
}

func (u *UI) SetListening() {
	u.updateStatus("listening")
}

func (u *UI) SetProcessing() {
	u.updateStatus("processing")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

func New(application *app.App, cfg *config.Config, version, commit string, log zerolog.Logger) *UI {
	return &UI{
		app:     application,
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log,
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run blocks on the tray event loop; it must be called from the main goroutine.
// onReady runs once the menu exists, onQuit when the tray is closing.
func (u *UI) Run(onReady, onQuit func()) {
	u.onQuit = onQuit
	systray.Run(func() {
		u.build()
		if onReady != nil {
			onReady()
		}
	}, u.onExit)
}

// Quit closes the tray from outside the menu
func (u *UI) Quit() {
	systray.Quit()
}

func (u *UI) build() {
	u.updateStatus("idle")
	systray.SetTooltip(fmt.Sprintf("Whisper Meet %s: live meeting transcription", u.version))

	// Build menu
	u.mSuggest = systray.AddMenuItem("Suggestions", "Ask for suggestions on the conversation ("+u.cfg.Hotkeys.Suggest+")")
	u.mSummary = systray.AddMenuItem("Summary", "Summarise the meeting ("+u.cfg.Hotkeys.Summary+")")
	systray.AddSeparator()
	u.mClear = systray.AddMenuItem("Clear Conversation", "Forget the transcribed lines ("+u.cfg.Hotkeys.Clear+")")
	u.mCopy = systray.AddMenuItemCheckbox("Copy answers to clipboard", "Copy suggestions and summaries", u.app.CopyAnswers())
	systray.AddSeparator()
	u.mQuit = systray.AddMenuItem("Quit", "Exit application")

	if !u.app.AssistantReady() {
		u.mSuggest.Disable()
		u.mSummary.Disable()
	}

	// Event loop
	go u.handleEvents()
}

func (u *UI) handleEvents() {
	for {
		select {
		case <-u.mSuggest.ClickedCh:
			go u.ask("suggestions", u.app.Suggest)
		case <-u.mSummary.ClickedCh:
			go u.ask("summary", u.app.Summarize)
		case <-u.mClear.ClickedCh:
			u.app.Clear()
		case <-u.mCopy.ClickedCh:
			u.toggleCopy()
		case <-u.mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) ask(name string, fn func(context.Context) (string, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), assistTimeout)
	defer cancel()
	if _, err := fn(ctx); err != nil {
		u.log.Warn().Err(err).Str("action", name).Msg("Assistant request failed")
	}
}

func (u *UI) toggleCopy() {
	on := !u.app.CopyAnswers()
	u.app.SetCopyAnswers(on)
	u.cfg.CopyToClipboard = on
	if on {
		u.mCopy.Check()
		u.log.Info().Msg("Enabled copying answers to clipboard")
	} else {
		u.mCopy.Uncheck()
		u.log.Info().Msg("Disabled copying answers to clipboard")
	}
	if err := u.cfg.Save(); err != nil {
		u.log.Warn().Err(err).Msg("Failed to save config")
	}
}

func (u *UI) onExit() {
	if u.onQuit != nil {
		u.onQuit()
	}
}

// updateStatus sets the tray title with microphone emoji and status indicator
func (u *UI) updateStatus(status string) {
	systray.SetTitle(titleFor(status))
}

func titleFor(status string) string {
	return fmt.Sprintf("🎤 %s", emojiForStatus(status))
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "listening":
		return "🔴" // Red - capturing the meeting
	case "processing":
		return "🟡" // Yellow - processing transcription
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}
