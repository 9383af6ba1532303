package tone_test

import (
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/gazevoice/pkg/audio"
	"github.com/MrWong99/gazevoice/pkg/audio/tone"
)

func TestDevice_DeliversFrames(t *testing.T) {
	t.Parallel()

	dev := tone.New(tone.WithFrequency(440), tone.WithPeriod(5*time.Millisecond))

	var mu sync.Mutex
	var total, frames int
	got := make(chan struct{}, 1)
	s, err := dev.Open(audio.Format{SampleRate: 16000, Channels: 1}, func(samples []int16, n int) {
		mu.Lock()
		total += len(samples)
		frames += n
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no frames delivered within 2s")
	}

	if err := s.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	_ = s.Close()

	mu.Lock()
	defer mu.Unlock()
	if total != frames {
		t.Errorf("mono stream: samples=%d frames=%d, want equal", total, frames)
	}
}

func TestDevice_OpenRejectsBadFormat(t *testing.T) {
	t.Parallel()

	dev := tone.New()
	if _, err := dev.Open(audio.Format{}, func([]int16, int) {}); err == nil {
		t.Error("expected error for zero format")
	}
	if _, err := dev.Open(audio.Format{SampleRate: 16000, Channels: 1}, nil); err == nil {
		t.Error("expected error for nil callback")
	}
}

func TestDevice_StartAfterClose(t *testing.T) {
	t.Parallel()

	s, err := tone.New().Open(audio.Format{SampleRate: 8000, Channels: 1}, func([]int16, int) {})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.Close()
	if err := s.Start(); err == nil {
		t.Error("expected Start after Close to fail")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
