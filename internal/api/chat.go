package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/agent"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
)

// maxAudioUpload bounds a recorded utterance.
const maxAudioUpload = 25 << 20

// ChatRequest is one text turn.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the assistant's answer.
type ChatResponse struct {
	Transcript string   `json:"transcript,omitempty"`
	Reply      string   `json:"reply"`
	ToolsUsed  []string `json:"tools_used,omitempty"`
	Audio      string   `json:"audio,omitempty"` // base64 MP3
}

func (s *Server) ask(ctx context.Context, sess *session.Session, text string) (*agent.Response, error) {
	return s.loop.Run(ctx, agent.Request{
		Session:  sess,
		Messages: []agent.Message{{Role: "user", Content: text}},
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.ask(r.Context(), sess, req.Message)
	if err != nil {
		s.logger.Error("agent loop failed", "user_id", sess.UserID, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "assistant unavailable")
		return
	}
	writeJSON(w, ChatResponse{Reply: resp.Content, ToolsUsed: resp.ToolsUsed}, s.logger)
}

// handleVoice runs a spoken turn: the "audio" form file is transcribed,
// answered and the answer synthesized.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.speech == nil {
		s.errorResponse(w, http.StatusNotImplemented, "speech is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	transcript, err := s.speech.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		s.logger.Error("transcription failed", "user_id", sess.UserID, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "transcription failed")
		return
	}
	if strings.TrimSpace(transcript) == "" {
		writeJSON(w, ChatResponse{Reply: "Sorry, I didn't catch that."}, s.logger)
		return
	}
	s.logger.Debug("voice transcribed", "user_id", sess.UserID, "transcript", transcript)

	resp, err := s.ask(r.Context(), sess, transcript)
	if err != nil {
		s.logger.Error("agent loop failed", "user_id", sess.UserID, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "assistant unavailable")
		return
	}

	out := ChatResponse{Transcript: transcript, Reply: resp.Content, ToolsUsed: resp.ToolsUsed}
	audio, err := s.speech.Synthesize(r.Context(), resp.Content)
	if err != nil {
		// The text reply is still useful to the device.
		s.logger.Warn("speech synthesis failed", "user_id", sess.UserID, "error", err)
	} else {
		out.Audio = base64.StdEncoding.EncodeToString(audio)
	}
	writeJSON(w, out, s.logger)
}
