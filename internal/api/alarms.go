package api

import (
	"net/http"
	"strings"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
)

// AlarmResult reports a mutation the way the assistant would say it.
type AlarmResult struct {
	Message string        `json:"message"`
	Matched int           `json:"matched"`
	Alarm   *alarm.Record `json:"alarm,omitempty"`
}

// ModifyRequest selects alarms and the fields to overwrite.
type ModifyRequest struct {
	Filter alarm.Filter `json:"filter"`
	Patch  alarm.Patch  `json:"patch"`
}

func (s *Server) alarmStoreError(w http.ResponseWriter, sess *session.Session, err error) {
	s.logger.Error("alarm operation failed", "user_id", sess.UserID, "error", err)
	s.errorResponse(w, http.StatusServiceUnavailable, "alarm store unavailable")
}

func (s *Server) handleAlarmList(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	list, err := s.alarms.List(r.Context(), sess.UserID)
	if err != nil {
		s.alarmStoreError(w, sess, err)
		return
	}
	if list == nil {
		list = []alarm.Record{}
	}
	writeJSON(w, list, s.logger)
}

func (s *Server) handleAlarmSet(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req alarm.SetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Clock) == "" {
		s.errorResponse(w, http.StatusBadRequest, "date and clock are required")
		return
	}

	rec, err := s.alarms.Set(r.Context(), sess.UserID, req)
	if err != nil {
		s.alarmStoreError(w, sess, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, AlarmResult{Message: alarm.MsgSet, Matched: 1, Alarm: &rec}, s.logger)
}

func (s *Server) handleAlarmModify(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req ModifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.alarms.Modify(r.Context(), sess.UserID, req.Filter, req.Patch)
	if err != nil {
		s.alarmStoreError(w, sess, err)
		return
	}
	writeJSON(w, AlarmResult{Message: res.Message, Matched: res.Matched}, s.logger)
}

// handleAlarmDelete takes its filter from the query string. Without
// any filter every alarm of the user is removed.
func (s *Server) handleAlarmDelete(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	q := r.URL.Query()
	f := alarm.Filter{
		Day:   q.Get("day"),
		Date:  q.Get("date"),
		Clock: q.Get("clock"),
		Title: q.Get("title"),
	}

	res, err := s.alarms.Delete(r.Context(), sess.UserID, f)
	if err != nil {
		s.alarmStoreError(w, sess, err)
		return
	}
	writeJSON(w, AlarmResult{Message: res.Message, Matched: res.Matched}, s.logger)
}
