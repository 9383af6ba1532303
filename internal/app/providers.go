package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MrWong99/gazevoice/internal/config"
	"github.com/MrWong99/gazevoice/pkg/audio"
	"github.com/MrWong99/gazevoice/pkg/audio/tone"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
	"github.com/MrWong99/gazevoice/pkg/provider/stt/console"
	"github.com/MrWong99/gazevoice/pkg/provider/stt/streaming"
)

// RegisterBuiltins wires the providers that ship with gazevoice into reg.
//
//	stt/console  transcripts typed on stdin, one per line
//	stt/file     transcripts read from options.path
//	audio/tone   sine tone, options.frequency and options.amplitude
//	audio/silent zero samples
//
// Streams opened by the STT backends are children of ctx.
func RegisterBuiltins(ctx context.Context, reg *config.Registry, stdin io.Reader) {
	reg.RegisterSTT("console", func(config.ProviderEntry) (stt.Backend, error) {
		return streaming.New(console.New(stdin), streaming.WithContext(ctx)), nil
	})

	reg.RegisterSTT("file", func(entry config.ProviderEntry) (stt.Backend, error) {
		path := entry.StringOption("path", "")
		if path == "" {
			return nil, fmt.Errorf("stt/file: options.path is required")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("stt/file: %w", err)
		}
		return streaming.New(console.New(bytes.NewReader(data)), streaming.WithContext(ctx)), nil
	})

	reg.RegisterAudio("tone", func(entry config.ProviderEntry) (audio.CaptureDevice, error) {
		return tone.New(
			tone.WithFrequency(entry.FloatOption("frequency", 440)),
			tone.WithAmplitude(entry.FloatOption("amplitude", 0.2)),
		), nil
	})

	reg.RegisterAudio("silent", func(config.ProviderEntry) (audio.CaptureDevice, error) {
		return tone.New(tone.WithFrequency(0)), nil
	})
}
