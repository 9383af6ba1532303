package console_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/gazevoice/pkg/provider/stt"
	"github.com/MrWong99/gazevoice/pkg/provider/stt/console"
)

func recvFinal(t *testing.T, h stt.SessionHandle) stt.Transcript {
	t.Helper()
	select {
	case tr, ok := <-h.Finals():
		if !ok {
			t.Fatal("finals channel closed")
		}
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for final transcript")
	}
	return stt.Transcript{}
}

func TestProvider_LinesBecomeFinals(t *testing.T) {
	t.Parallel()

	p := console.New(strings.NewReader("scroll down\n\n  go to wikipedia;go too wikipedia  \n"))
	h, err := p.StartStream(context.Background(), stt.StreamConfig{Language: "en-US"})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer h.Close()

	first := recvFinal(t, h)
	if first.Text != "scroll down" || !first.IsFinal {
		t.Errorf("first = %+v, want final %q", first, "scroll down")
	}

	second := recvFinal(t, h)
	if second.Text != "go to wikipedia" {
		t.Errorf("second.Text = %q, want %q", second.Text, "go to wikipedia")
	}
	want := []string{"go to wikipedia", "go too wikipedia"}
	if !slices.Equal(second.Alternatives, want) {
		t.Errorf("second.Alternatives = %q, want %q", second.Alternatives, want)
	}
}

func TestProvider_LinesCarryOverToNextSession(t *testing.T) {
	t.Parallel()

	p := console.New(strings.NewReader("back\nforward\n"))
	h1, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if got := recvFinal(t, h1).Text; got != "back" {
		t.Fatalf("h1 final = %q, want %q", got, "back")
	}
	if err := h1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h2, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer h2.Close()
	if got := recvFinal(t, h2).Text; got != "forward" {
		t.Errorf("h2 final = %q, want %q", got, "forward")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	p := console.New(strings.NewReader(""))
	h, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if err := h.SendAudio([]byte{0, 1}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := h.SendAudio([]byte{0, 1}); !errors.Is(err, console.ErrClosed) {
		t.Errorf("SendAudio after Close err = %v, want ErrClosed", err)
	}
	if _, ok := <-h.Finals(); ok {
		t.Error("finals channel still open after Close")
	}
}

func TestProvider_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := console.New(strings.NewReader("")).StartStream(ctx, stt.StreamConfig{}); !errors.Is(err, context.Canceled) {
		t.Errorf("StartStream err = %v, want context.Canceled", err)
	}
}
