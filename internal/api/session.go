package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
)

// sessionHandler is a handler that runs with a resolved session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// bearerToken extracts the session token from the Authorization header,
// or from the token query parameter for websocket clients that cannot
// set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// withSession resolves the caller's session before calling next.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Resolve(r.Context(), bearerToken(r))
		if errors.Is(err, session.ErrNotFound) {
			s.errorResponse(w, http.StatusUnauthorized, "unknown or missing session token")
			return
		}
		if err != nil {
			s.logger.Error("session lookup failed", "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "session lookup failed")
			return
		}
		next(w, r, sess)
	}
}

// LoginRequest opens a session.
type LoginRequest struct {
	Email     string   `json:"email"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (req LoginRequest) coordinates() *session.Coordinates {
	if req.Latitude == nil || req.Longitude == nil {
		return nil
	}
	return &session.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.errorResponse(w, http.StatusBadRequest, "email is required")
		return
	}

	sess, err := s.sessions.Login(r.Context(), req.Email, req.coordinates())
	if err != nil {
		s.logger.Warn("login failed", "error", err)
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, sess, s.logger)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := s.sessions.Logout(r.Context(), sess.Token); err != nil {
		s.logger.Error("logout failed", "user_id", sess.UserID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "logout failed")
		return
	}
	s.loop.Forget(sess.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var c session.Coordinates
	if err := decodeJSON(r, &c); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		s.errorResponse(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	if err := s.sessions.UpdateLocation(r.Context(), sess.Token, c); err != nil {
		s.logger.Error("location update failed", "user_id", sess.UserID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "location update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
