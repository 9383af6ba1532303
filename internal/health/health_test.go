package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/gazevoice/internal/resilience"
	sttmock "github.com/MrWong99/gazevoice/pkg/provider/stt/mock"
)

func serve(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "broken", Check: func(context.Context) error { return errors.New("down") }})
	code, body := serve(t, h, "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("healthz = %d %q, want 200 ok", code, body.Status)
	}
}

func TestHealthz_ContentType(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	New().Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{},
		},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "speech", Check: ok}, {Name: "publisher", Check: ok}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"speech": "ok", "publisher": "ok"},
		},
		{
			name:       "one fails",
			checkers:   []Checker{{Name: "speech", Check: ok}, {Name: "publisher", Check: fail}},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"speech": "ok", "publisher": "fail: connection refused"},
		},
		{
			name:       "all fail",
			checkers:   []Checker{{Name: "speech", Check: fail}, {Name: "publisher", Check: fail}},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"speech": "fail: connection refused", "publisher": "fail: connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := serve(t, New(tt.checkers...), "/readyz")
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			wantStatus := "ok"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "fail"
			}
			if body.Status != wantStatus {
				t.Errorf("body status = %q, want %q", body.Status, wantStatus)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %q = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

type loaded bool

func (l loaded) Loaded() bool { return bool(l) }

func TestSpeechLoaded(t *testing.T) {
	t.Parallel()
	if err := SpeechLoaded(loaded(true)).Check(context.Background()); err != nil {
		t.Errorf("loaded session: %v", err)
	}
	if err := SpeechLoaded(loaded(false)).Check(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("unloaded session err = %v, want ErrNotLoaded", err)
	}
}

type connected bool

func (c connected) Connected() bool { return bool(c) }

func TestPublisher(t *testing.T) {
	t.Parallel()
	if err := Publisher(connected(true)).Check(context.Background()); err != nil {
		t.Errorf("connected publisher: %v", err)
	}
	if err := Publisher(connected(false)).Check(context.Background()); err == nil {
		t.Error("disconnected publisher: want error")
	}
}

func TestBackends(t *testing.T) {
	t.Parallel()
	fb := resilience.NewBackendFallback(sttmock.NewBackend(), "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 1},
	})
	fb.AddFallback("secondary", sttmock.NewBackend())
	check := Backends(fb)

	if err := check.Check(context.Background()); err != nil {
		t.Fatalf("closed circuits: %v", err)
	}

	trip := func(name string) {
		cb, ok := fb.Breaker(name)
		if !ok {
			t.Fatalf("no breaker for %q", name)
		}
		cb.Record(errors.New("stream failed"))
	}

	trip("primary")
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("one circuit open: %v, want ready", err)
	}
	trip("secondary")
	if err := check.Check(context.Background()); err == nil {
		t.Error("all circuits open: want error")
	}
}
