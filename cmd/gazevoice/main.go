// Command gazevoice runs the voice-command recognition pipeline with the
// diagnostics server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/gazevoice/internal/app"
	"github.com/MrWong99/gazevoice/internal/config"
	"github.com/MrWong99/gazevoice/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "path to an optional .env file with GAZEVOICE_* overrides")
	noReload := flag.Bool("no-reload", false, "do not watch the configuration file for changes")
	flag.Parse()

	// ── Environment and configuration ─────────────────────────────────────────
	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "gazevoice: %v\n", err)
		return 1
	}

	cfg, watchPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gazevoice: %v\n", err)
		return 1
	}
	if *noReload {
		watchPath = ""
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("gazevoice starting",
		"version", version,
		"config", watchPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Language:       cfg.Voice.Language,
		STTProvider:    cfg.Providers.STT.Name,
		AudioProvider:  cfg.Providers.Audio.Name,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg,
		app.WithLevelVar(level),
		app.WithConfigPath(watchPath),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("ready, type transcripts on stdin when using the console backend; press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig loads path. A missing file at the default path falls back to
// the built-in defaults plus environment overrides; it is then not watched.
func loadConfig(path string) (*config.Config, string, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || flagWasSet("config") {
		return nil, "", err
	}

	cfg = config.Default()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, "", err
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        gazevoice startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("STT", sttSummary(cfg.Providers.STT))
	printRow("Audio", cfg.Providers.Audio.Name)
	printRow("Language", cfg.Voice.Language)
	printRow("Scorer", string(cfg.Voice.Scorer))
	if cfg.Publish.MQTT.Enabled() {
		printRow("MQTT", cfg.Publish.MQTT.Broker)
	} else {
		printRow("MQTT", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func sttSummary(sc config.STTConfig) string {
	if n := len(sc.Fallbacks); n > 0 {
		return fmt.Sprintf("%s +%d fallback(s)", sc.Name, n)
	}
	return sc.Name
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "..."
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}
