package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	_ "modernc.org/sqlite"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/agent"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/llm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/memory"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	return db
}

// cannedLLM answers every turn with reply.
type cannedLLM struct {
	mu    sync.Mutex
	reply string
	seen  []string
}

func (c *cannedLLM) Chat(_ context.Context, _ string, msgs []llm.Message, _ []map[string]any) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, msgs[len(msgs)-1].Content)
	return &llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: c.reply}, FinishReason: "stop"}, nil
}

func (c *cannedLLM) Ping(context.Context) error { return nil }

type fakeSpeech struct {
	transcript string
}

func (f *fakeSpeech) Transcribe(_ context.Context, _ string, audio io.Reader) (string, error) {
	if _, err := io.ReadAll(audio); err != nil {
		return "", err
	}
	return f.transcript, nil
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("mp3:" + text), nil
}

type testEnv struct {
	server *Server
	hub    *Hub
	llm    *cannedLLM
	alarms *alarm.Service
}

func newTestEnv(t *testing.T, speech Speech, publicURL string) *testEnv {
	t.Helper()
	logger := discardLogger()

	sessStore, err := session.NewStore(memoryDB(t))
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	t.Cleanup(func() { sessStore.Close() })

	alarmStore, err := alarm.NewStore(memoryDB(t))
	if err != nil {
		t.Fatalf("alarm store: %v", err)
	}
	t.Cleanup(func() { alarmStore.Close() })
	alarms := alarm.NewService(alarmStore, logger)

	client := &cannedLLM{reply: "Sure thing."}
	reg := tools.NewRegistry(time.UTC, logger)
	reg.SetAlarmService(alarms)
	loop := agent.NewLoop(agent.Config{Model: "test", Location: time.UTC}, client, reg, memory.NewStore(20), logger)

	hub := NewHub(speech, logger)
	srv := NewServer(Config{PublicURL: publicURL}, session.NewManager(sessStore, nil, logger), loop, alarms, speech, hub, logger)
	return &testEnv{server: srv, hub: hub, llm: client, alarms: alarms}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, email string) *session.Session {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/session", "", LoginRequest{Email: email})
	if w.Code != http.StatusCreated {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body)
	}
	var sess session.Session
	if err := json.NewDecoder(w.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return &sess
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t, nil, "")
	for _, path := range []string{"/", "/health", "/v1/version"} {
		w := env.do(t, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s content type = %q", path, ct)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil, "")

	sess := env.login(t, "Alice.Smith@example.com")
	if sess.Token == "" {
		t.Error("login returned empty token")
	}
	if sess.UserID != "alice_smith@example_com" {
		t.Errorf("UserID = %q", sess.UserID)
	}

	for _, body := range []any{LoginRequest{}, LoginRequest{Email: "not an address"}, "garbage"} {
		w := env.do(t, http.MethodPost, "/v1/session", "", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("login(%v) = %d, want 400", body, w.Code)
		}
	}
}

func TestChatRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil, "")

	for _, token := range []string{"", "unknown"} {
		w := env.do(t, http.MethodPost, "/v1/chat", token, ChatRequest{Message: "hi"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("chat with token %q = %d, want 401", token, w.Code)
		}
	}
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, nil, "")
	sess := env.login(t, "alice@example.com")

	w := env.do(t, http.MethodPost, "/v1/chat", sess.Token, ChatRequest{Message: "What time is it?"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat = %d, body %s", w.Code, w.Body)
	}
	var resp ChatResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Reply != "Sure thing." {
		t.Errorf("Reply = %q", resp.Reply)
	}
	if len(env.llm.seen) != 1 || env.llm.seen[0] != "What time is it?" {
		t.Errorf("model saw %v", env.llm.seen)
	}

	w = env.do(t, http.MethodPost, "/v1/chat", sess.Token, ChatRequest{Message: "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty message = %d, want 400", w.Code)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	env := newTestEnv(t, nil, "")
	sess := env.login(t, "alice@example.com")

	if w := env.do(t, http.MethodDelete, "/v1/session", sess.Token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v1/chat", sess.Token, ChatRequest{Message: "hi"}); w.Code != http.StatusUnauthorized {
		t.Errorf("chat after logout = %d, want 401", w.Code)
	}
}

func TestUpdateLocation(t *testing.T) {
	env := newTestEnv(t, nil, "")
	sess := env.login(t, "alice@example.com")

	w := env.do(t, http.MethodPut, "/v1/session/location", sess.Token, session.Coordinates{Latitude: 59.35, Longitude: 18.07})
	if w.Code != http.StatusNoContent {
		t.Fatalf("location = %d, body %s", w.Code, w.Body)
	}
	got, err := env.server.sessions.Resolve(context.Background(), sess.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Location == nil || got.Location.Latitude != 59.35 {
		t.Errorf("Location = %+v", got.Location)
	}

	w = env.do(t, http.MethodPut, "/v1/session/location", sess.Token, session.Coordinates{Latitude: 120})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range = %d, want 400", w.Code)
	}
}

func TestAlarmEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, "")
	alice := env.login(t, "alice@example.com")
	bob := env.login(t, "bob@example.com")

	w := env.do(t, http.MethodPost, "/v1/alarms", alice.Token, alarm.SetRequest{Day: "Friday", Date: "2024-03-01", Clock: "07:00"})
	if w.Code != http.StatusCreated {
		t.Fatalf("set = %d, body %s", w.Code, w.Body)
	}
	var set AlarmResult
	json.NewDecoder(w.Body).Decode(&set)
	if set.Message != alarm.MsgSet || set.Alarm == nil || set.Alarm.ID == "" {
		t.Errorf("set result = %+v", set)
	}
	env.do(t, http.MethodPost, "/v1/alarms", alice.Token, alarm.SetRequest{Day: "Friday", Date: "2024-03-01", Clock: "08:00"})

	if w := env.do(t, http.MethodPost, "/v1/alarms", alice.Token, alarm.SetRequest{Day: "Friday"}); w.Code != http.StatusBadRequest {
		t.Errorf("set without date = %d, want 400", w.Code)
	}

	title := "Gym"
	w = env.do(t, http.MethodPatch, "/v1/alarms", alice.Token, ModifyRequest{
		Filter: alarm.Filter{Clock: "08:00"},
		Patch:  alarm.Patch{Title: &title},
	})
	var mod AlarmResult
	json.NewDecoder(w.Body).Decode(&mod)
	if mod.Matched != 1 || mod.Message != alarm.MsgModified {
		t.Errorf("modify result = %+v", mod)
	}

	w = env.do(t, http.MethodGet, "/v1/alarms", alice.Token, nil)
	var list []alarm.Record
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 2 || list[1].Title != "Gym" {
		t.Errorf("alice's alarms = %+v", list)
	}

	w = env.do(t, http.MethodGet, "/v1/alarms", bob.Token, nil)
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("bob's alarms = %s, want []", body)
	}

	w = env.do(t, http.MethodDelete, "/v1/alarms?clock=07:00", alice.Token, nil)
	var del AlarmResult
	json.NewDecoder(w.Body).Decode(&del)
	if del.Matched != 1 || del.Message != alarm.MsgDeleted {
		t.Errorf("delete result = %+v", del)
	}

	w = env.do(t, http.MethodDelete, "/v1/alarms?title=Nope", alice.Token, nil)
	json.NewDecoder(w.Body).Decode(&del)
	if del.Message != alarm.MsgNotFound {
		t.Errorf("delete unmatched = %+v", del)
	}
}

func voiceRequest(t *testing.T, token string, audio []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "clip.wav")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(audio)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/voice", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestVoice(t *testing.T) {
	env := newTestEnv(t, &fakeSpeech{transcript: "set an alarm"}, "")
	sess := env.login(t, "alice@example.com")

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, voiceRequest(t, sess.Token, []byte("RIFF....")))
	if w.Code != http.StatusOK {
		t.Fatalf("voice = %d, body %s", w.Code, w.Body)
	}

	var resp ChatResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Transcript != "set an alarm" || resp.Reply != "Sure thing." {
		t.Errorf("response = %+v", resp)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil || string(audio) != "mp3:Sure thing." {
		t.Errorf("audio = %q, %v", audio, err)
	}
}

func TestVoiceWithoutSpeech(t *testing.T) {
	env := newTestEnv(t, nil, "")
	sess := env.login(t, "alice@example.com")

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, voiceRequest(t, sess.Token, []byte("x")))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("voice without speech = %d, want 501", w.Code)
	}
}

func TestPair(t *testing.T) {
	env := newTestEnv(t, nil, "")
	if w := env.do(t, http.MethodGet, "/v1/pair", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("pair without public url = %d, want 404", w.Code)
	}

	env = newTestEnv(t, nil, "http://ecco6.local:8080")
	w := env.do(t, http.MethodGet, "/v1/pair", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pair = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestAnnouncementStream(t *testing.T) {
	env := newTestEnv(t, &fakeSpeech{}, "")
	sess := env.login(t, "alice@example.com")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/announcements?token=" + sess.Token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Connected(sess.UserID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("device never registered")
		}
		time.Sleep(time.Millisecond)
	}

	if err := env.hub.Notify(context.Background(), sess.UserID, "Alarm for 09:00"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Announcement
	if err := ws.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Type != "alarm" || got.Text != "Alarm for 09:00" {
		t.Errorf("announcement = %+v", got)
	}
	if audio, _ := base64.StdEncoding.DecodeString(got.Audio); string(audio) != "mp3:Alarm for 09:00" {
		t.Errorf("audio = %q", audio)
	}

	// Other users get nothing and it is not an error.
	if err := env.hub.Notify(context.Background(), "bob@example_com", "x"); err != nil {
		t.Errorf("Notify(no device) = %v, want nil", err)
	}
}

func TestAnnouncementStreamRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil, "")
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/announcements?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial succeeded without a session")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %+v, want 401", resp)
	}
}
