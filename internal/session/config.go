package session

import (
	"time"

	"github.com/MrWong99/gazevoice/internal/command"
	"github.com/MrWong99/gazevoice/pkg/audio"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// Default stream settings.
const (
	DefaultLanguage         = "en-US"
	DefaultSampleRate       = 16000
	DefaultChannels         = 1
	DefaultMaxBufferSeconds = 3
	DefaultModelCommand     = "command_and_search"
	DefaultModelFree        = "default"
	DefaultMaxAlternatives  = 1
	DefaultQueryInterval    = time.Second
	DefaultStopTimeout      = 5 * time.Second
)

// Config holds the stream settings applied on every activation.
type Config struct {
	// Language is the BCP-47 recognition language.
	Language string

	// SampleRate and Channels describe the captured audio.
	SampleRate int
	Channels   int

	// MaxBufferSeconds bounds how much audio is kept between uploads.
	MaxBufferSeconds int

	// ModelCommand and ModelFree are the backend models requested in
	// [command.ModeCommand] and [command.ModeFree].
	ModelCommand string
	ModelFree    string

	// MaxAlternatives is the number of ranked alternatives requested.
	MaxAlternatives int

	// InterimResults requests partial results from the backend.
	InterimResults bool

	// QueryInterval is the period between audio uploads.
	QueryInterval time.Duration

	// StopTimeout bounds how long Deactivate waits for the worker loops.
	StopTimeout time.Duration
}

// DefaultConfig returns the reference configuration: 16 kHz mono en-US with
// one-second uploads.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	if c.MaxBufferSeconds <= 0 {
		c.MaxBufferSeconds = DefaultMaxBufferSeconds
	}
	if c.ModelCommand == "" {
		c.ModelCommand = DefaultModelCommand
	}
	if c.ModelFree == "" {
		c.ModelFree = DefaultModelFree
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = DefaultMaxAlternatives
	}
	if c.QueryInterval <= 0 {
		c.QueryInterval = DefaultQueryInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	return c
}

// Model returns the backend model for mode.
func (c Config) Model(mode command.Mode) string {
	if mode == command.ModeFree {
		return c.ModelFree
	}
	return c.ModelCommand
}

// StreamConfig returns the backend stream configuration for mode.
func (c Config) StreamConfig(mode command.Mode) stt.StreamConfig {
	return stt.StreamConfig{
		Language:        c.Language,
		SampleRate:      c.SampleRate,
		Channels:        c.Channels,
		Model:           c.Model(mode),
		MaxAlternatives: c.MaxAlternatives,
		InterimResults:  c.InterimResults,
	}
}

// Format returns the capture format.
func (c Config) Format() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
}
