package audio_test

import (
	"testing"

	"github.com/MrWong99/gazevoice/pkg/audio"
)

func TestSamplesToPCM_LittleEndian(t *testing.T) {
	got := audio.SamplesToPCM([]int16{1, -1, 0x0102})
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x02, 0x01}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestPCMToSamples_RoundTrip(t *testing.T) {
	in := []int16{0, 32767, -32768, 42, -7}
	assertSamples(t, audio.PCMToSamples(audio.SamplesToPCM(in)), in)
}

func TestPCMToSamples_OddByteIgnored(t *testing.T) {
	got := audio.PCMToSamples([]byte{0x05, 0x00, 0x07})
	assertSamples(t, got, []int16{5})
}

func TestFormat_String(t *testing.T) {
	tests := []struct {
		f    audio.Format
		want string
	}{
		{audio.Format{SampleRate: 16000, Channels: 1}, "16000Hz mono"},
		{audio.Format{SampleRate: 48000, Channels: 2}, "48000Hz stereo"},
		{audio.Format{SampleRate: 44100, Channels: 6}, "44100Hz 6ch"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.f, got, tt.want)
		}
	}
}
