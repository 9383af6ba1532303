package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/coder/websocket"
)

// Toggler switches voice input on and off from the monitor view.
type Toggler interface {
	Activate()
	Deactivate()
	Active() bool
}

// command is a client-to-server websocket message.
type command struct {
	Action string `json:"action"` // "activate", "deactivate" or "toggle"
}

// writeTimeout bounds every websocket write.
const writeTimeout = 5 * time.Second

// HandlerOption configures [Handler].
type HandlerOption func(*handler)

// WithToggler allows clients to activate and deactivate voice input. Without
// a toggler, client commands are ignored.
func WithToggler(t Toggler) HandlerOption {
	return func(h *handler) { h.toggler = t }
}

// WithOriginPatterns sets the host patterns allowed to open cross-origin
// websocket connections.
func WithOriginPatterns(patterns ...string) HandlerOption {
	return func(h *handler) { h.origins = patterns }
}

type handler struct {
	rec     *Recorder
	toggler Toggler
	origins []string
}

// Handler returns an [http.Handler] that upgrades to a websocket, sends the
// current snapshot as one event per category, then streams every change.
// Clients may send {"action":"toggle"} (or "activate"/"deactivate").
func Handler(rec *Recorder, opts ...HandlerOption) http.Handler {
	h := &handler{rec: rec}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("monitor: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := h.rec.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()
	go h.readCommands(ctx, stop, conn)

	snap := h.rec.Snapshot()
	cats := make([]string, 0, len(snap))
	for c := range snap {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	now := time.Now()
	for _, c := range cats {
		if err := write(ctx, conn, Event{Category: Category(c), Text: snap[Category(c)], Time: now}); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := write(ctx, conn, ev); err != nil {
				slog.Debug("monitor: websocket write failed", "err", err)
				return
			}
		}
	}
}

func (h *handler) readCommands(ctx context.Context, stop context.CancelFunc, conn *websocket.Conn) {
	defer stop()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Debug("monitor: ignoring malformed command", "err", err)
			continue
		}
		if h.toggler == nil {
			continue
		}
		switch cmd.Action {
		case "activate":
			h.toggler.Activate()
		case "deactivate":
			h.toggler.Deactivate()
		case "toggle":
			if h.toggler.Active() {
				h.toggler.Deactivate()
			} else {
				h.toggler.Activate()
			}
		default:
			slog.Debug("monitor: unknown command", "action", cmd.Action)
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
