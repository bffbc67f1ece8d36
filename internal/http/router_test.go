package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"speech-coach-service/internal/service/coach"
	"speech-coach-service/internal/service/tracker"
)

type fakeSession struct {
	mu       sync.Mutex
	startErr error
	state    tracker.State
}

func (s *fakeSession) StartListening(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.state.Listening = true
	return nil
}

func (s *fakeSession) StopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Listening = false
}

func (s *fakeSession) Snapshot() tracker.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

var fixedNow = time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)

func newTestRouter(s Session, ready func() bool, hub *Hub) http.Handler {
	return newRouter(s, ready, hub, func() time.Time { return fixedNow })
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		ready    func() bool
		expected int
	}{
		{"liveness", "/v1/liveness", nil, http.StatusOK},
		{"ready", "/v1/readiness", func() bool { return true }, http.StatusOK},
		{"not ready", "/v1/readiness", func() bool { return false }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeSession{}, tt.ready, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestRouter_SessionLifecycle(t *testing.T) {
	s := &fakeSession{}
	h := newTestRouter(s, nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session/start", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st tracker.State
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !st.Listening {
		t.Error("expected listening after start")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"listening":true`) {
		t.Errorf("expected listening state, got %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session/stop", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"listening":false`) {
		t.Errorf("expected stopped state, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_StartErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"capture", fmt.Errorf("%w: permission denied", coach.ErrCaptureUnavailable), http.StatusFailedDependency},
		{"other", errors.New("failed to start recognizer"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeSession{startErr: tt.err}, nil, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session/start", nil))
			if rec.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "error") {
				t.Errorf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestRouter_Report(t *testing.T) {
	s := &fakeSession{state: tracker.State{
		StartedAt: fixedNow.Add(-2 * time.Minute),
		Metrics:   tracker.SpeechMetrics{TotalWords: 280, AveragePace: tracker.PaceGood, ClarityScore: tracker.ClarityGood},
	}}
	h := newTestRouter(s, nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session/report", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["wordsPerMinute"] != 140.0 {
		t.Errorf("expected 140 wpm, got %v", body["wordsPerMinute"])
	}
	if body["duration"] != "2:00" {
		t.Errorf("expected 2:00, got %v", body["duration"])
	}
}

func TestRouter_EventsWebSocket(t *testing.T) {
	hub := NewHub()
	updates := make(chan tracker.State)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, updates)

	srv := httptest.NewServer(newTestRouter(&fakeSession{}, nil, hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/session/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.Count())
	}

	updates <- tracker.State{Transcript: "hello there", Listening: true}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var st tracker.State
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if st.Transcript != "hello there" || !st.Listening {
		t.Errorf("unexpected state %+v", st)
	}

	// A late client gets the latest state immediately.
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := late.ReadJSON(&st); err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if st.Transcript != "hello there" {
		t.Errorf("expected latest state, got %+v", st)
	}
}
