package ops

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evan-idocoding/framekit/frame"
)

const streamWriteTimeout = 10 * time.Second

// FramesEvent is one message of FramesStreamHandler.
type FramesEvent struct {
	Type    string      `json:"type"` // "snapshot"
	Version uint64      `json:"version"`
	Session uint64      `json:"session"`
	Stats   frame.Stats `json:"stats"`

	// View is set when the stream was opened with ?full=true.
	View *FramesView `json:"view,omitempty"`
}

type streamConfig struct {
	checkOrigin func(*http.Request) bool
}

// StreamOption configures FramesStreamHandler.
type StreamOption func(*streamConfig)

// WithStreamCheckOrigin replaces the websocket origin check. The default accepts
// same-host origins only.
func WithStreamCheckOrigin(fn func(*http.Request) bool) StreamOption {
	return func(c *streamConfig) { c.checkOrigin = fn }
}

// FramesStreamHandler upgrades to a websocket and sends a JSON FramesEvent for the
// current snapshot and then for every newly published one. Slow clients skip
// intermediate versions. ?full=true includes the whole tree in each event.
func FramesStreamHandler(m *frame.Mirror, opts ...StreamOption) http.Handler {
	if m == nil {
		panic("ops: nil frame.Mirror")
	}
	var cfg streamConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     cfg.checkOrigin,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, FormatText, "GET")
			return
		}
		raw, _ := getQueryRequired(r, "full")
		full, _ := strconv.ParseBool(raw)

		updates, cancel := m.Watch()
		defer cancel()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Reads detect the client closing; inbound messages are ignored.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func() bool {
			ev := framesEvent(m, full)
			if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				return false
			}
			return conn.WriteJSON(ev) == nil
		}
		if !send() {
			return
		}
		var last uint64
		for {
			select {
			case v, ok := <-updates:
				if !ok {
					return
				}
				if v <= last {
					continue
				}
				last = v
				if !send() {
					return
				}
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
	})
}

func framesEvent(m *frame.Mirror, full bool) FramesEvent {
	ev := FramesEvent{Type: "snapshot"}
	if full {
		view, _ := BuildFramesView(m, "")
		ev.View = &view
		ev.Version, ev.Session, ev.Stats = view.Version, view.Session, view.Stats
		return ev
	}
	snap := m.Snapshot()
	ev.Version, ev.Session, ev.Stats = snap.Version(), snap.Session(), m.Stats()
	return ev
}
