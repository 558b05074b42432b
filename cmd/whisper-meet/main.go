package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-meet/internal/app"
	"github.com/petems/whisper-meet/internal/assist"
	"github.com/petems/whisper-meet/internal/audio"
	"github.com/petems/whisper-meet/internal/clip"
	"github.com/petems/whisper-meet/internal/config"
	"github.com/petems/whisper-meet/internal/hotkey"
	"github.com/petems/whisper-meet/internal/logging"
	"github.com/petems/whisper-meet/internal/metrics"
	"github.com/petems/whisper-meet/internal/permissions"
	"github.com/petems/whisper-meet/internal/tray"
	"github.com/petems/whisper-meet/internal/whisper"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

type flags struct {
	configPath  string
	model       string
	language    string
	sampleRate  int
	audioDevice int
	listDevices bool
	debug       bool
	tray        bool
	metricsAddr string
}

func parseFlags() (flags, map[string]bool) {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "config file (.json or .yaml); defaults to the platform config dir")
	flag.StringVar(&f.model, "model", "", "whisper model (tiny, base, small, medium, with optional .en)")
	flag.StringVar(&f.language, "language", "", "transcription language, or auto")
	flag.IntVar(&f.sampleRate, "sample-rate", 0, "capture sample rate in Hz")
	flag.IntVar(&f.audioDevice, "audio-device", -1, "input device index (see --list-devices)")
	flag.BoolVar(&f.listDevices, "list-devices", false, "print audio devices and exit")
	flag.BoolVar(&f.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&f.tray, "tray", false, "show the system tray menu")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set
}

// apply overrides file values with the flags given on the command line
func (f flags) apply(cfg *config.Config, set map[string]bool) {
	if set["model"] {
		cfg.Whisper.Model = f.model
	}
	if set["language"] {
		cfg.Whisper.Language = f.language
	}
	if set["sample-rate"] {
		cfg.SampleRate = f.sampleRate
	}
	if set["audio-device"] && f.audioDevice >= 0 {
		id := f.audioDevice
		cfg.Audio.DeviceID = &id
	}
	if set["tray"] {
		cfg.Tray = f.tray
	}
	if set["metrics-addr"] {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	f, set := parseFlags()

	// Load config from XDG/Library/AppData unless a path is given
	cfg, err := config.Load(f.configPath)
	if err != nil {
		log := logging.New()
		log.Error().Err(err).Msg("Failed to load config")
		return 1
	}
	f.apply(cfg, set)

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	driver, err := audio.NewPortAudio()
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize audio")
		return 1
	}
	defer driver.Close()

	if f.listDevices {
		devices, err := driver.Devices()
		if err != nil {
			log.Error().Err(err).Msg("Failed to list audio devices")
			return 1
		}
		def, ok := driver.DefaultInput()
		if !ok {
			def = -1
		}
		if err := audio.PrintDevices(os.Stdout, devices, def); err != nil {
			return 1
		}
		return 0
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsureMicrophone(log); err != nil {
		log.Error().Err(err).Msg("Required permissions not granted")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mp, shutdownMetrics, err := metrics.InitProvider(Version)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize metrics")
		return 1
	}
	defer shutdownMetrics(context.Background())

	m, err := metrics.New(mp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create instruments")
		return 1
	}

	// Initialize whisper
	transcriber, err := whisper.New(ctx, cfg.Whisper, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize whisper")
		return 1
	}
	defer transcriber.Close()

	var clipboard clip.Writer = clip.Nop{}
	if clip.Available() {
		clipboard = clip.New()
	} else if cfg.CopyToClipboard {
		log.Warn().Msg("No clipboard backend found, answers will only be printed")
	}

	// Initialize hotkey manager; without one the tray and signals still work
	hkManager, err := hotkey.New()
	if err != nil {
		if !errors.Is(err, hotkey.ErrUnsupported) {
			log.Error().Err(err).Msg("Failed to initialize hotkeys")
			return 1
		}
		log.Warn().Err(err).Msg("Global hotkeys disabled")
	}

	application := app.New(app.Config{
		Driver:      driver,
		Transcriber: transcriber,
		Assistant:   assist.New(cfg.Assist, log, m),
		Clipboard:   clipboard,
		Hotkeys:     hkManager,
		Config:      cfg,
		Logger:      log,
		Metrics:     m,
	})

	log.Info().Str("version", Version).Str("commit", Commit).Msg("Whisper Meet starting...")
	printHelp(cfg)

	if cfg.Tray {
		err = runWithTray(ctx, application, cfg, log)
	} else {
		err = application.Run(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("Exited with error")
		return 1
	}

	st := application.Stats()
	log.Info().Uint64("utterances", st.Utterances).Uint64("blocks", st.Blocks).Msg("Goodbye")
	return 0
}

// runWithTray keeps the tray on the main goroutine and the app beside it
func runWithTray(ctx context.Context, application *app.App, cfg *config.Config, log zerolog.Logger) error {
	ui := tray.New(application, cfg, Version, Commit, log)
	application.SetStatusUpdater(ui)

	errCh := make(chan error, 1)
	ui.Run(func() {
		go func() {
			errCh <- application.Run(ctx)
			ui.Quit()
		}()
	}, application.Quit)
	return <-errCh
}

func printHelp(cfg *config.Config) {
	fmt.Println("Hotkeys:")
	fmt.Printf("   • %s - Suggerimenti AI 💡\n", cfg.Hotkeys.Suggest)
	fmt.Printf("   • %s - Riassunto meeting 📋\n", cfg.Hotkeys.Summary)
	fmt.Printf("   • %s - Pulisci conversazione 🗑️\n", cfg.Hotkeys.Clear)
	fmt.Printf("   • %s - Esci\n", cfg.Hotkeys.Quit)
	fmt.Println()
}
