package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/gazevoice/internal/config"
	"github.com/MrWong99/gazevoice/pkg/audio"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

func builtins(t *testing.T, stdin string) *config.Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := config.NewRegistry()
	RegisterBuiltins(ctx, reg, strings.NewReader(stdin))
	return reg
}

func TestRegisterBuiltins_Names(t *testing.T) {
	t.Parallel()
	reg := builtins(t, "")
	if got := strings.Join(reg.STTNames(), ","); got != "console,file" {
		t.Errorf("STTNames = %q, want console,file", got)
	}
	if got := strings.Join(reg.AudioNames(), ","); got != "silent,tone" {
		t.Errorf("AudioNames = %q, want silent,tone", got)
	}
	for _, name := range reg.STTNames() {
		if !contains(config.ValidProviderNames["stt"], name) {
			t.Errorf("stt/%s missing from config.ValidProviderNames", name)
		}
	}
	for _, name := range reg.AudioNames() {
		if !contains(config.ValidProviderNames["audio"], name) {
			t.Errorf("audio/%s missing from config.ValidProviderNames", name)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func receive(t *testing.T, b stt.Backend) string {
	t.Helper()
	if err := b.InitializeStream(stt.StreamConfig{Language: "en-US", SampleRate: 16000, Channels: 1}); err != nil {
		t.Fatalf("InitializeStream: %v", err)
	}
	defer b.CloseStream()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		text, err := b.ReceiveTranscript()
		if err != nil {
			t.Fatalf("ReceiveTranscript: %v", err)
		}
		if text != "" {
			return text
		}
	}
	t.Fatal("no transcript received")
	return ""
}

func TestRegisterBuiltins_Console(t *testing.T) {
	t.Parallel()
	b, err := builtins(t, "go to wikipedia\n").CreateSTT(config.ProviderEntry{Name: "console"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if got := receive(t, b); got != "go to wikipedia" {
		t.Errorf("transcript = %q, want go to wikipedia", got)
	}
}

func TestRegisterBuiltins_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(path, []byte("\nscroll down\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := builtins(t, "")

	b, err := reg.CreateSTT(config.ProviderEntry{Name: "file", Options: map[string]any{"path": path}})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if got := receive(t, b); got != "scroll down" {
		t.Errorf("transcript = %q, want scroll down", got)
	}

	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "file"}); err == nil {
		t.Error("file provider without path: want error")
	}
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "file", Options: map[string]any{"path": path + ".missing"}}); err == nil {
		t.Error("file provider with missing file: want error")
	}
}

func TestRegisterBuiltins_Audio(t *testing.T) {
	t.Parallel()
	reg := builtins(t, "")
	for _, name := range []string{"tone", "silent"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			d, err := reg.CreateAudio(config.ProviderEntry{Name: name, Options: map[string]any{"frequency": 880}})
			if err != nil {
				t.Fatalf("CreateAudio: %v", err)
			}
			frames := make(chan []int16, 4)
			s, err := d.Open(audio.Format{SampleRate: 16000, Channels: 1}, func(samples []int16, _ int) {
				select {
				case frames <- append([]int16(nil), samples...):
				default:
				}
			})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close()
			if err := s.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			select {
			case f := <-frames:
				if len(f) == 0 {
					t.Error("empty frame")
				}
				if name == "silent" {
					for _, v := range f {
						if v != 0 {
							t.Fatalf("silent device produced sample %d", v)
						}
					}
				}
			case <-time.After(time.Second):
				t.Fatal("no frames captured")
			}
		})
	}
}
