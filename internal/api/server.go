// Package api implements the Ecco6 HTTP API used by the button device
// and companion apps.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/agent"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/buildinfo"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Speech converts between audio and text.
type Speech interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Server is the HTTP API server.
type Server struct {
	address   string
	port      int
	publicURL string
	sessions  *session.Manager
	loop      *agent.Loop
	alarms    *alarm.Service
	speech    Speech
	hub       *Hub
	logger    *slog.Logger
	server    *http.Server
}

// Config holds the listener settings.
type Config struct {
	Address   string
	Port      int
	PublicURL string
}

// NewServer creates a new API server. speech may be nil, which
// disables /v1/voice and audio in announcements.
func NewServer(cfg Config, sessions *session.Manager, loop *agent.Loop, alarms *alarm.Service, speech Speech, hub *Hub, logger *slog.Logger) *Server {
	return &Server{
		address:   cfg.Address,
		port:      cfg.Port,
		publicURL: cfg.PublicURL,
		sessions:  sessions,
		loop:      loop,
		alarms:    alarms,
		speech:    speech,
		hub:       hub,
		logger:    logger,
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/session", s.handleLogin)
	mux.HandleFunc("DELETE /v1/session", s.withSession(s.handleLogout))
	mux.HandleFunc("PUT /v1/session/location", s.withSession(s.handleLocation))

	mux.HandleFunc("POST /v1/chat", s.withSession(s.handleChat))
	mux.HandleFunc("POST /v1/voice", s.withSession(s.handleVoice))

	mux.HandleFunc("GET /v1/alarms", s.withSession(s.handleAlarmList))
	mux.HandleFunc("POST /v1/alarms", s.withSession(s.handleAlarmSet))
	mux.HandleFunc("PATCH /v1/alarms", s.withSession(s.handleAlarmModify))
	mux.HandleFunc("DELETE /v1/alarms", s.withSession(s.handleAlarmDelete))

	mux.HandleFunc("GET /v1/announcements", s.withSession(s.handleAnnouncements))
	mux.HandleFunc("GET /v1/pair", s.handlePair)

	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second, // voice turns run STT, the agent and TTS
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and closes announcement streams.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.CloseAll()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"name":    "Ecco6",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "healthy",
		"uptime": buildinfo.Uptime().Round(time.Second).String(),
		"memory": s.loop.Stats(),
	}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
