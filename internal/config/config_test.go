package config_test

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/gazevoice/internal/config"
	"github.com/MrWong99/gazevoice/internal/session"
	"github.com/MrWong99/gazevoice/pkg/audio"
	audiomock "github.com/MrWong99/gazevoice/pkg/audio/mock"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
	sttmock "github.com/MrWong99/gazevoice/pkg/provider/stt/mock"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: debug
voice:
  language: de-DE
  sample_rate: 22050
  max_alternatives: 5
  query_interval: 500ms
  periodic_restart: true
  scorer: metaphone
providers:
  stt:
    name: console
    fallbacks:
      - name: file
    circuit_breaker:
      max_failures: 2
      reset_timeout: 10s
  audio:
    name: tone
    options:
      frequency: 523.25
      label: a5
publish:
  mqtt:
    broker: tcp://localhost:1883
    qos: 1
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	v := cfg.Voice
	if v.Language != "de-DE" || v.SampleRate != 22050 || v.MaxAlternatives != 5 {
		t.Errorf("voice = %+v, want de-DE/22050/5", v)
	}
	if v.QueryInterval != 500*time.Millisecond {
		t.Errorf("QueryInterval = %s, want 500ms", v.QueryInterval)
	}
	if !v.PeriodicRestart || v.Scorer != config.ScorerMetaphone {
		t.Errorf("PeriodicRestart = %v, Scorer = %q", v.PeriodicRestart, v.Scorer)
	}
	if got := cfg.Providers.STT.Fallbacks; len(got) != 1 || got[0].Name != "file" {
		t.Errorf("Fallbacks = %+v, want [file]", got)
	}
	if cb := cfg.Providers.STT.CircuitBreaker; cb.MaxFailures != 2 || cb.ResetTimeout != 10*time.Second {
		t.Errorf("CircuitBreaker = %+v", cb)
	}
	if got := cfg.Providers.Audio.FloatOption("frequency", 0); got != 523.25 {
		t.Errorf("frequency option = %v, want 523.25", got)
	}
	if got := cfg.Providers.Audio.StringOption("label", ""); got != "a5" {
		t.Errorf("label option = %q, want a5", got)
	}
	if !cfg.Publish.MQTT.Enabled() || cfg.Publish.MQTT.Topic == "" {
		t.Errorf("MQTT = %+v, want enabled with default topic", cfg.Publish.MQTT)
	}
	if got := cfg.Publish.MQTT.Publisher(); got.QoS != 1 || got.Broker != "tcp://localhost:1883" {
		t.Errorf("Publisher() = %+v", got)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader empty: %v", err)
	}
	if cfg.Voice.Session() != session.DefaultConfig() {
		t.Errorf("Session() = %+v, want %+v", cfg.Voice.Session(), session.DefaultConfig())
	}
	if cfg.Providers.STT.Name != config.DefaultSTT || cfg.Providers.Audio.Name != config.DefaultAudio {
		t.Errorf("providers = %q/%q", cfg.Providers.STT.Name, cfg.Providers.Audio.Name)
	}
	if cfg.Publish.MQTT.Enabled() {
		t.Error("MQTT enabled without broker")
	}
	if cfg.Voice.FrameInterval() != time.Second/config.DefaultFrameRate {
		t.Errorf("FrameInterval = %s", cfg.Voice.FrameInterval())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("voice:\n  langauge: en-US\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Default does not validate: %v", err)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		valid bool
		slog  slog.Level
	}{
		{config.LogDebug, true, slog.LevelDebug},
		{config.LogInfo, true, slog.LevelInfo},
		{config.LogWarn, true, slog.LevelWarn},
		{config.LogError, true, slog.LevelError},
		{"verbose", false, slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			if got := tt.level.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.level.Slog(); got != tt.slog {
				t.Errorf("Slog() = %v, want %v", got, tt.slog)
			}
		})
	}
}

func TestProviderEntry_Options(t *testing.T) {
	t.Parallel()
	e := config.ProviderEntry{Options: map[string]any{"n": 3, "s": "x", "b": true}}
	if got := e.FloatOption("n", 0); got != 3 {
		t.Errorf("FloatOption(n) = %v, want 3", got)
	}
	if got := e.FloatOption("b", 7); got != 7 {
		t.Errorf("FloatOption(b) = %v, want default 7", got)
	}
	if got := e.FloatOption("missing", 1.5); got != 1.5 {
		t.Errorf("FloatOption(missing) = %v, want 1.5", got)
	}
	if got := e.StringOption("s", ""); got != "x" {
		t.Errorf("StringOption(s) = %q, want x", got)
	}
	if got := e.StringOption("n", "def"); got != "def" {
		t.Errorf("StringOption(n) = %q, want def", got)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateAudio(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateAudio err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	backend := sttmock.NewBackend()
	device := &audiomock.Device{Name: "mic"}

	var gotEntry config.ProviderEntry
	reg.RegisterSTT("mock", func(e config.ProviderEntry) (stt.Backend, error) {
		gotEntry = e
		return backend, nil
	})
	reg.RegisterAudio("mic", func(config.ProviderEntry) (audio.CaptureDevice, error) { return device, nil })
	reg.RegisterAudio("beta", func(config.ProviderEntry) (audio.CaptureDevice, error) { return device, nil })

	b, err := reg.CreateSTT(config.ProviderEntry{Name: "mock", APIKey: "k"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if b != backend || gotEntry.APIKey != "k" {
		t.Errorf("CreateSTT returned %v with entry %+v", b, gotEntry)
	}
	d, err := reg.CreateAudio(config.ProviderEntry{Name: "mic"})
	if err != nil || d != device {
		t.Errorf("CreateAudio = %v, %v", d, err)
	}
	if got := reg.AudioNames(); strings.Join(got, ",") != "beta,mic" {
		t.Errorf("AudioNames = %v, want [beta mic]", got)
	}
	if got := reg.STTNames(); strings.Join(got, ",") != "mock" {
		t.Errorf("STTNames = %v, want [mock]", got)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := errors.New("no credentials")
	reg.RegisterSTT("cloud", func(config.ProviderEntry) (stt.Backend, error) { return nil, want })
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "cloud"}); !errors.Is(err, want) {
		t.Errorf("CreateSTT err = %v, want %v", err, want)
	}
}
