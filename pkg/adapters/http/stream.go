package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/storyline"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/oapi-codegen/runtime"
)

const (
	// subscriberBuffer is the per-client event backlog before events are dropped.
	subscriberBuffer = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SubscribeContent handles GET /events, streaming a reload signal whenever
// mission content changes on disk.
func (s *Server) SubscribeContent(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	changes, err := s.Engine.Watch(r.Context())
	if err != nil {
		writeError(w, http.StatusNotImplemented, err)
		return
	}

	sseHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

// SubscribeSession handles GET /sessions/{sessionID}/events. The optional
// watch query lists the event types to forward.
func (s *Server) SubscribeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	var watch string
	if err := runtime.BindQueryParameter("form", true, false, "watch", r.URL.Query(), &watch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	filter := parseWatch(watch)

	events, unsubscribe, err := sess.Subscribe(r.Context(), subscriberBuffer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer unsubscribe()

	logger := s.logger.With("session_id", sess.ID)
	logger.Info("SSE: client subscribed", "watch", watch)

	sseHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			logger.Info("SSE: client disconnected")
			return
		case e, ok := <-events:
			if !ok {
				fmt.Fprintf(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if !filter.match(e.Type) {
				continue
			}
			payload, err := json.Marshal(e)
			if err != nil {
				logger.Error("SSE: failed to encode event", "type", e.Type, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, payload)
			flusher.Flush()
		}
	}
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// eventFilter is a set of event types; empty forwards everything.
type eventFilter map[domain.EventType]struct{}

func parseWatch(raw string) eventFilter {
	f := eventFilter{}
	for _, field := range strings.Split(raw, ",") {
		if field = strings.TrimSpace(field); field != "" {
			f[domain.EventType(field)] = struct{}{}
		}
	}
	return f
}

func (f eventFilter) match(t domain.EventType) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[t]
	return ok
}

// SocketMessage is a frame sent over the session websocket.
type SocketMessage struct {
	Type   string            `json:"type"`
	Event  *domain.Event     `json:"event,omitempty"`
	Result *storyline.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// SessionSocket handles GET /sessions/{sessionID}/ws. Events flow out as
// "event" frames; each inbound CommandRequest is answered with a "result" or
// "error" frame.
func (s *Server) SessionSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session_id", sess.ID, "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	events, unsubscribe, err := sess.Subscribe(ctx, subscriberBuffer)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()))
		_ = conn.Close()
		return
	}
	defer unsubscribe()

	logger := s.logger.With("session_id", sess.ID)
	replies := make(chan SocketMessage, 16)

	go readPump(ctx, cancel, conn, sess, replies, logger)
	writePump(ctx, conn, events, replies, logger)
}

// readPump decodes commands from the client until the connection fails.
func readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *storyline.Session,
	replies chan<- SocketMessage, logger *slog.Logger) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req CommandRequest
		if err := conn.ReadJSON(&req); err != nil {
			var syntax *json.SyntaxError
			var mismatch *json.UnmarshalTypeError
			if errors.As(err, &syntax) || errors.As(err, &mismatch) {
				reply(ctx, replies, SocketMessage{Type: "error", Error: "invalid command frame"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", "err", err)
			}
			return
		}

		res, err := apply(ctx, sess, req)
		if err != nil {
			reply(ctx, replies, SocketMessage{Type: "error", Error: err.Error()})
			if errors.Is(err, domain.ErrSessionClosed) {
				return
			}
			continue
		}
		reply(ctx, replies, SocketMessage{Type: "result", Result: &res})
	}
}

func reply(ctx context.Context, replies chan<- SocketMessage, msg SocketMessage) {
	select {
	case replies <- msg:
	case <-ctx.Done():
	}
}

// writePump owns every write on conn: events, command replies and pings.
func writePump(ctx context.Context, conn *websocket.Conn, events <-chan domain.Event,
	replies <-chan SocketMessage, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(msg SocketMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug("websocket write failed", "err", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if !write(SocketMessage{Type: "event", Event: &e}) {
				return
			}
		case msg := <-replies:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
