package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Announcement is pushed to connected devices when an alarm fires.
type Announcement struct {
	Type  string    `json:"type"`
	Text  string    `json:"text"`
	Audio string    `json:"audio,omitempty"` // base64 MP3
	At    time.Time `json:"at"`
}

// conn is one device connection. Writes are serialized by mu.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub tracks the announcement streams of connected devices.
type Hub struct {
	upgrader websocket.Upgrader
	speech   Speech
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	conns map[string]map[*conn]struct{}
}

// NewHub creates a Hub. When speech is set, announcements carry
// synthesized audio.
func NewHub(speech Speech, logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Devices are not browsers and send no Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		speech: speech,
		logger: logger,
		now:    time.Now,
		conns:  make(map[string]map[*conn]struct{}),
	}
}

// Serve upgrades the request and holds the stream open until the
// device disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Debug("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	c := &conn{ws: ws}
	h.add(userID, c)
	h.logger.Info("device connected", "user_id", userID, "remote", r.RemoteAddr)

	done := make(chan struct{})
	go h.keepAlive(c, done)

	ws.SetReadLimit(4096)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Devices only listen; reading drives pong and close handling.
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("device stream ended", "user_id", userID, "error", err)
			}
			break
		}
	}

	close(done)
	h.remove(userID, c)
	ws.Close()
	h.logger.Info("device disconnected", "user_id", userID)
}

func (h *Hub) keepAlive(c *conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	if set == nil {
		set = make(map[*conn]struct{})
		h.conns[userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}

func (h *Hub) snapshot(userID string) []*conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		out = append(out, c)
	}
	return out
}

// Connected reports how many streams userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}

// Notify pushes an announcement to every device of userID. It
// satisfies alarm.Sink. A user with no connected device is not an
// error; other sinks may still reach them.
func (h *Hub) Notify(ctx context.Context, userID, utterance string) error {
	conns := h.snapshot(userID)
	if len(conns) == 0 {
		h.logger.Debug("no device connected for announcement", "user_id", userID)
		return nil
	}

	msg := Announcement{Type: "alarm", Text: utterance, At: h.now().UTC()}
	if h.speech != nil {
		audio, err := h.speech.Synthesize(ctx, utterance)
		if err != nil {
			h.logger.Warn("announcement synthesis failed", "user_id", userID, "error", err)
		} else {
			msg.Audio = base64.StdEncoding.EncodeToString(audio)
		}
	}

	var errs []error
	for _, c := range conns {
		if err := c.send(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseAll tells every device the server is going away.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*conn
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range all {
		c.mu.Lock()
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.mu.Unlock()
		c.ws.Close()
	}
}

func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.hub == nil {
		s.errorResponse(w, http.StatusNotImplemented, "announcement streams are disabled")
		return
	}
	s.hub.Serve(w, r, sess.UserID)
}
