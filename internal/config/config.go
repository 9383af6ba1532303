// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for gazevoice.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/gazevoice/internal/publish"
	"github.com/MrWong99/gazevoice/internal/session"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog returns the matching slog level. Unknown levels map to Info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ScorerName selects the word distance used for command dispatch.
type ScorerName string

const (
	ScorerLevenshtein ScorerName = "levenshtein"
	ScorerSoundex     ScorerName = "soundex"
	ScorerMetaphone   ScorerName = "metaphone"
)

// IsValid reports whether s names a built-in scorer.
func (s ScorerName) IsValid() bool {
	switch s {
	case ScorerLevenshtein, ScorerSoundex, ScorerMetaphone:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Voice     VoiceConfig     `yaml:"voice"`
	Providers ProvidersConfig `yaml:"providers"`
	Publish   PublishConfig   `yaml:"publish"`
}

// ServerConfig holds the diagnostics HTTP server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the metrics, health and monitor
	// endpoints (e.g. ":9090"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// TLS configures HTTPS. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls" ignored:"true"`

	// MonitorOrigins lists host patterns allowed to open the monitor
	// websocket from another origin.
	MonitorOrigins []string `yaml:"monitor_origins" ignored:"true"`
}

// TLSConfig holds TLS certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// VoiceConfig holds the transcription stream and recognition settings.
type VoiceConfig struct {
	// Language is the BCP 47 tag sent to the transcription backend.
	Language string `yaml:"language" envconfig:"LANGUAGE"`

	SampleRate       int `yaml:"sample_rate" envconfig:"SAMPLE_RATE"`
	Channels         int `yaml:"channels" envconfig:"CHANNELS"`
	MaxBufferSeconds int `yaml:"max_buffer_seconds" envconfig:"MAX_BUFFER_SECONDS"`

	// ModelCommand and ModelFree are the backend models used in command and
	// free mode.
	ModelCommand string `yaml:"model_command" envconfig:"MODEL_COMMAND"`
	ModelFree    string `yaml:"model_free" envconfig:"MODEL_FREE"`

	// MaxAlternatives is the number of ranked transcripts requested per
	// result.
	MaxAlternatives int  `yaml:"max_alternatives" envconfig:"MAX_ALTERNATIVES"`
	InterimResults  bool `yaml:"interim_results" envconfig:"INTERIM_RESULTS"`

	// QueryInterval is the period of the audio upload loop.
	QueryInterval time.Duration `yaml:"query_interval" envconfig:"QUERY_INTERVAL"`

	// RunTimeLimit is the stream age that triggers a restart when
	// PeriodicRestart is set.
	RunTimeLimit    time.Duration `yaml:"run_time_limit" envconfig:"RUN_TIME_LIMIT"`
	PeriodicRestart bool          `yaml:"periodic_restart" envconfig:"PERIODIC_RESTART"`

	// StopTimeout bounds how long deactivation waits for the worker loops.
	StopTimeout time.Duration `yaml:"stop_timeout" envconfig:"STOP_TIMEOUT"`

	Scorer         ScorerName `yaml:"scorer" envconfig:"SCORER"`
	CompareScorers bool       `yaml:"compare_scorers" envconfig:"COMPARE_SCORERS"`

	// FrameRate is the rate of the built-in frame loop in frames per second.
	FrameRate int `yaml:"frame_rate" envconfig:"FRAME_RATE"`
}

// Session converts v to the session stream settings.
func (v VoiceConfig) Session() session.Config {
	return session.Config{
		Language:         v.Language,
		SampleRate:       v.SampleRate,
		Channels:         v.Channels,
		MaxBufferSeconds: v.MaxBufferSeconds,
		ModelCommand:     v.ModelCommand,
		ModelFree:        v.ModelFree,
		MaxAlternatives:  v.MaxAlternatives,
		InterimResults:   v.InterimResults,
		QueryInterval:    v.QueryInterval,
		StopTimeout:      v.StopTimeout,
	}
}

// FrameInterval returns the duration of one frame.
func (v VoiceConfig) FrameInterval() time.Duration {
	if v.FrameRate <= 0 {
		return time.Second / DefaultFrameRate
	}
	return time.Second / time.Duration(v.FrameRate)
}

// ProvidersConfig selects the transcription backend and capture device.
// Each entry names a factory registered in the [Registry].
type ProvidersConfig struct {
	STT   STTConfig     `yaml:"stt"`
	Audio ProviderEntry `yaml:"audio"`
}

// STTConfig is the transcription provider plus ordered fallbacks.
type STTConfig struct {
	ProviderEntry `yaml:",inline"`

	// Fallbacks are tried in order when the primary cannot open a stream.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// CircuitBreaker tunes the per-backend breakers used with fallbacks.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the resilience layer.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// ProviderEntry is the configuration block shared by all provider types.
// Name looks up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "console", "tone").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Options holds provider-specific values. Values may be strings,
	// numbers, booleans or nested maps.
	Options map[string]any `yaml:"options"`
}

// FloatOption returns the numeric option key, or def when absent or not a
// number.
func (e ProviderEntry) FloatOption(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		return def
	}
}

// StringOption returns the string option key, or def when absent.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return def
}

// PublishConfig configures where resolved actions are sent.
type PublishConfig struct {
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the MQTT action publisher. An empty Broker disables
// publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker" envconfig:"BROKER"`
	Topic    string `yaml:"topic" envconfig:"TOPIC"`
	ClientID string `yaml:"client_id" envconfig:"CLIENT_ID"`
	Username string `yaml:"username" envconfig:"USERNAME"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	QoS      int    `yaml:"qos" envconfig:"QOS"`
	Retain   bool   `yaml:"retain" envconfig:"RETAIN"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Publisher converts m to the publisher settings.
func (m MQTTConfig) Publisher() publish.MQTTConfig {
	return publish.MQTTConfig{
		Broker:   m.Broker,
		Topic:    m.Topic,
		ClientID: m.ClientID,
		Username: m.Username,
		Password: m.Password,
		QoS:      byte(m.QoS),
		Retain:   m.Retain,
	}
}
