package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/gazevoice/internal/publish"
	"github.com/MrWong99/gazevoice/internal/session"
	"github.com/MrWong99/gazevoice/internal/voiceinput"
)

// EnvPrefix prefixes every environment override, e.g. GAZEVOICE_LANGUAGE.
const EnvPrefix = "gazevoice"

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr = ":9090"
	DefaultFrameRate  = 60
	DefaultSTT        = "console"
	DefaultAudio      = "tone"
)

// ValidProviderNames lists the built-in provider names per provider kind.
// [Validate] warns about names not in this list.
var ValidProviderNames = map[string][]string{
	"stt":   {"console", "file"},
	"audio": {"tone", "silent"},
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// Parse is [Load] for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates it. Environment overrides are not applied, which keeps tests
// independent of the process environment.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment without overriding variables that are already set.
// Missing files are ignored. With no arguments it loads ".env".
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %q: %w", p, err)
		}
		slog.Debug("config: loaded environment file", "path", p)
	}
	return nil
}

// ApplyEnv overrides cfg from GAZEVOICE_* environment variables. Variables
// that are not set leave the field untouched.
//
//	GAZEVOICE_LISTEN_ADDR, GAZEVOICE_LOG_LEVEL
//	GAZEVOICE_LANGUAGE, GAZEVOICE_QUERY_INTERVAL, ... (one per voice field)
//	GAZEVOICE_MQTT_BROKER, GAZEVOICE_MQTT_PASSWORD, ...
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, &cfg.Server); err != nil {
		return fmt.Errorf("config: env server: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Voice); err != nil {
		return fmt.Errorf("config: env voice: %w", err)
	}
	if err := envconfig.Process(EnvPrefix+"_mqtt", &cfg.Publish.MQTT); err != nil {
		return fmt.Errorf("config: env mqtt: %w", err)
	}
	return nil
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	v := &cfg.Voice
	setDefault(&v.Language, session.DefaultLanguage)
	setDefault(&v.SampleRate, session.DefaultSampleRate)
	setDefault(&v.Channels, session.DefaultChannels)
	setDefault(&v.MaxBufferSeconds, session.DefaultMaxBufferSeconds)
	setDefault(&v.ModelCommand, session.DefaultModelCommand)
	setDefault(&v.ModelFree, session.DefaultModelFree)
	setDefault(&v.MaxAlternatives, session.DefaultMaxAlternatives)
	setDefault(&v.QueryInterval, session.DefaultQueryInterval)
	setDefault(&v.RunTimeLimit, voiceinput.DefaultRunTimeLimit)
	setDefault(&v.StopTimeout, session.DefaultStopTimeout)
	setDefault(&v.Scorer, ScorerLevenshtein)
	setDefault(&v.FrameRate, DefaultFrameRate)

	setDefault(&cfg.Providers.STT.Name, DefaultSTT)
	setDefault(&cfg.Providers.Audio.Name, DefaultAudio)

	if cfg.Publish.MQTT.Enabled() {
		setDefault(&cfg.Publish.MQTT.Topic, publish.DefaultTopic)
	}
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if t := cfg.Server.TLS; t != nil && (t.CertFile == "" || t.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	v := cfg.Voice
	if _, err := language.Parse(v.Language); err != nil {
		errs = append(errs, fmt.Errorf("voice.language %q is not a valid BCP 47 tag: %w", v.Language, err))
	}
	if v.SampleRate < 8000 || v.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("voice.sample_rate %d is out of range [8000, 48000]", v.SampleRate))
	}
	if v.Channels != 1 && v.Channels != 2 {
		errs = append(errs, fmt.Errorf("voice.channels %d is invalid; valid values: 1, 2", v.Channels))
	}
	if v.MaxBufferSeconds <= 0 {
		errs = append(errs, fmt.Errorf("voice.max_buffer_seconds must be positive, got %d", v.MaxBufferSeconds))
	}
	if v.MaxAlternatives < 1 || v.MaxAlternatives > 30 {
		errs = append(errs, fmt.Errorf("voice.max_alternatives %d is out of range [1, 30]", v.MaxAlternatives))
	}
	errs = appendPositive(errs, "voice.query_interval", v.QueryInterval)
	errs = appendPositive(errs, "voice.run_time_limit", v.RunTimeLimit)
	errs = appendPositive(errs, "voice.stop_timeout", v.StopTimeout)
	if !v.Scorer.IsValid() {
		errs = append(errs, fmt.Errorf("voice.scorer %q is invalid; valid values: levenshtein, soundex, metaphone", v.Scorer))
	}
	if v.FrameRate < 1 || v.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("voice.frame_rate %d is out of range [1, 240]", v.FrameRate))
	}
	if v.PeriodicRestart && v.RunTimeLimit <= v.QueryInterval {
		errs = append(errs, fmt.Errorf("voice.run_time_limit %s must exceed voice.query_interval %s", v.RunTimeLimit, v.QueryInterval))
	}

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.Audio.Name == "" {
		errs = append(errs, errors.New("providers.audio.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	seen := map[string]bool{cfg.Providers.STT.Name: true}
	for i, fb := range cfg.Providers.STT.Fallbacks {
		switch {
		case fb.Name == "":
			errs = append(errs, fmt.Errorf("providers.stt.fallbacks[%d].name is required", i))
		case seen[fb.Name]:
			errs = append(errs, fmt.Errorf("providers.stt.fallbacks[%d].name %q is a duplicate", i, fb.Name))
		default:
			validateProviderName("stt", fb.Name)
		}
		seen[fb.Name] = true
	}
	validateProviderName("audio", cfg.Providers.Audio.Name)

	if m := cfg.Publish.MQTT; m.Enabled() {
		if m.QoS < 0 || m.QoS > 2 {
			errs = append(errs, fmt.Errorf("publish.mqtt.qos %d is invalid; valid values: 0, 1, 2", m.QoS))
		}
		if m.Topic == "" {
			errs = append(errs, errors.New("publish.mqtt.topic is required when a broker is set"))
		}
	}

	return errors.Join(errs...)
}

func appendPositive(errs []error, field string, d time.Duration) []error {
	if d <= 0 {
		return append(errs, fmt.Errorf("%s must be positive, got %s", field, d))
	}
	return errs
}

// validateProviderName logs a warning if name is not a built-in provider of
// kind. Third-party factories may still be registered under it.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("config: unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
