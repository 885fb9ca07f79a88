package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"melody-quiz-service/internal/app"
	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/infra/memory"
	"melody-quiz-service/internal/media"
)

func TestWebSocketRoundFlow(t *testing.T) {
	registry, hub := newTestRegistry()
	server := httptest.NewServer(NewRouter(registry, hub, RouterOptions{}))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=chat-1&userId=u1&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect joined event first.
	msgType, payload := readNext(conn, t, "joined")
	if msgType != "joined" {
		t.Fatalf("expected joined, got %s", msgType)
	}
	if payload == nil {
		t.Fatalf("expected joined payload, got nil")
	}

	start := map[string]any{
		"type":    "start",
		"payload": map[string]any{"questionId": "q1"},
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	waitFor(conn, t, "roundStarted", "clipReady")
	waitAccepting(t, registry, "chat-1")

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"value": "queen"},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	seen := waitFor(conn, t, "answerResult", "roundRevealed")
	result := seen["answerResult"]
	if result["accepted"] != true {
		t.Fatalf("expected accepted answer, got %v", result)
	}
	reveal := seen["roundRevealed"]
	board, _ := reveal["scoreboard"].(map[string]any)
	entries, _ := board["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one scoreboard entry, got %v", reveal)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	registry, hub := newTestRegistry()
	server := httptest.NewServer(NewRouter(registry, hub, RouterOptions{}))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=chat-1"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// waitFor reads until every wanted message type has been seen, skipping others.
func waitFor(conn *websocket.Conn, t *testing.T, types ...string) map[string]map[string]any {
	t.Helper()
	seen := make(map[string]map[string]any)
	for i := 0; i < 20 && len(seen) < len(types); i++ {
		typ, payload := readNext(conn, t, "")
		if typ == "error" {
			t.Fatalf("unexpected error message: %v", payload)
		}
		for _, want := range types {
			if typ == want {
				seen[typ] = payload
			}
		}
	}
	for _, want := range types {
		if _, ok := seen[want]; !ok {
			t.Fatalf("expected %s message, saw %v", want, seen)
		}
	}
	return seen
}

func waitAccepting(t *testing.T, registry *app.Registry, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := registry.Round(sessionID); ok && snap.Status == domain.RoundAcceptingAnswers {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("round never reached accepting answers")
}

func newTestRegistry() (*app.Registry, *Hub) {
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(map[string]domain.Question{
		"q1": {ID: "q1", MediaURI: "/music/queen.mp3", DurationSeconds: 354, Artist: "Queen", Title: "Bohemian Rhapsody"},
		"q2": {ID: "q2", MediaURI: "/music/abba.mp3", DurationSeconds: 165, Artist: "ABBA", Title: "Waterloo"},
	}), time.Minute)
	hub := NewHub()
	registry := app.NewRegistry(
		memory.NewSessionStore(),
		questions,
		media.NewLocator(questions, nil, time.Minute, nil),
		stubExtractor{},
		app.NewLedger(),
		app.WithNotifier(hub),
	)
	return registry, hub
}

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, spec domain.ClipSpec) (domain.Clip, error) {
	return domain.Clip{Data: []byte("OggS-clip"), Format: spec.Format, DurationSeconds: spec.DurationSeconds}, nil
}
