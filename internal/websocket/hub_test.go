package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/henrietta/adapters"
	"github.com/satriahrh/henrietta/adapters/llm"
	"github.com/satriahrh/henrietta/adapters/stt"
	"github.com/satriahrh/henrietta/adapters/tts"
	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
	"github.com/satriahrh/henrietta/internal/persona"
	"github.com/satriahrh/henrietta/usecase"
)

type testEnv struct {
	hub     *Hub
	service *usecase.SessionService
	repo    *adapters.MemorySessionRepository
	session *entities.SessionState
	url     string
}

func setupTestHub(t *testing.T, speech repositories.SpeechToText) testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	p, err := persona.Default()
	if err != nil {
		t.Fatalf("Failed to load persona: %v", err)
	}

	pipeline := usecase.NewTurnPipeline(
		usecase.NewTranscriber(map[repositories.ProviderKind]repositories.SpeechToText{
			repositories.ProviderGoogle: speech,
		}, repositories.ProviderGoogle, logger),
		usecase.NewResponder(llm.NewMockLLM("I was born in Roanoke."), p, logger),
		usecase.NewSynthesizer(tts.NewMockTTS([]byte{0xff, 0xfb, 0x90}), logger),
		logger,
	)

	repo := adapters.NewMemorySessionRepository(logger)
	service := usecase.NewSessionService(repo, pipeline, time.Hour, logger)

	session, err := service.Start(context.Background())
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	hub := NewHub(service, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocketWithAuth(hub, c, session.ID, logger)
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return testEnv{
		hub:     hub,
		service: service,
		repo:    repo,
		session: session,
		url:     "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket connection failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("Expected text frame, got %d", messageType)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Invalid JSON from server: %v", err)
	}
	return msg
}

func TestHub_TextTurn(t *testing.T) {
	env := setupTestHub(t, stt.NewMockSpeechToText("unused", zap.NewNop()))
	ws := dial(t, env.url)

	if err := ws.WriteJSON(map[string]string{"type": "text_turn", "text": "Where were you born?"}); err != nil {
		t.Fatalf("Failed to send text turn: %v", err)
	}

	msg := readJSON(t, ws)
	if msg["type"] != string(MessageTypeTurnCommitted) {
		t.Fatalf("Expected turn_committed, got %v", msg)
	}
	if msg["user_text"] != "Where were you born?" || msg["reply_text"] != "I was born in Roanoke." {
		t.Errorf("Unexpected turn texts %v", msg)
	}
	if msg["has_audio"] != true {
		t.Error("Expected reply audio")
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, audio, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read audio frame: %v", err)
	}
	if messageType != websocket.BinaryMessage || len(audio) != 3 {
		t.Errorf("Expected 3 byte binary frame, got type %d with %d bytes", messageType, len(audio))
	}

	// The render after the audio frame resets auto-play
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := env.service.Get(context.Background(), env.session.ID)
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if len(stored.Transcript) == 2 && !stored.IsPlaying {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Session not rendered: %d turns, playing %v", len(stored.Transcript), stored.IsPlaying)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BinaryClipRejected(t *testing.T) {
	env := setupTestHub(t, stt.NewFailingSpeechToText(entities.FailureUnintelligible, zap.NewNop()))
	ws := dial(t, env.url)

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("RIFF garbled")); err != nil {
		t.Fatalf("Failed to send clip: %v", err)
	}

	msg := readJSON(t, ws)
	if msg["type"] != string(MessageTypeTurnRejected) {
		t.Fatalf("Expected turn_rejected, got %v", msg)
	}
	if msg["message"] != "Could not understand audio" {
		t.Errorf("Expected sentinel message, got %v", msg["message"])
	}

	stored, _ := env.service.Get(context.Background(), env.session.ID)
	if len(stored.Transcript) != 0 {
		t.Error("Rejected clip must not reach the transcript")
	}
}

func TestHub_PingAndInvalidMessages(t *testing.T) {
	env := setupTestHub(t, stt.NewMockSpeechToText("unused", zap.NewNop()))
	ws := dial(t, env.url)

	ws.WriteJSON(map[string]string{"type": "ping", "data": "hello"})
	msg := readJSON(t, ws)
	if msg["type"] != string(MessageTypePong) || msg["data"] != "hello" {
		t.Errorf("Expected pong echoing data, got %v", msg)
	}

	ws.WriteJSON(map[string]string{"type": "text_turn", "text": "  "})
	msg = readJSON(t, ws)
	if msg["type"] != string(MessageTypeError) || msg["error_code"] != "invalid_message" {
		t.Errorf("Expected invalid_message error, got %v", msg)
	}

	ws.WriteMessage(websocket.TextMessage, []byte("not json"))
	msg = readJSON(t, ws)
	if msg["type"] != string(MessageTypeError) {
		t.Errorf("Expected error, got %v", msg)
	}
}

func TestHub_EndedSession(t *testing.T) {
	env := setupTestHub(t, stt.NewMockSpeechToText("unused", zap.NewNop()))
	ws := dial(t, env.url)

	if err := env.service.End(context.Background(), env.session.ID); err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}

	ws.WriteJSON(map[string]string{"type": "text_turn", "text": "Are you there?"})
	msg := readJSON(t, ws)
	if msg["error_code"] != "session_not_found" {
		t.Errorf("Expected session_not_found, got %v", msg)
	}
}

func TestHub_ClientLifecycle(t *testing.T) {
	env := setupTestHub(t, stt.NewMockSpeechToText("unused", zap.NewNop()))

	ws := dial(t, env.url)
	waitFor(t, func() bool { return env.hub.ClientCount() == 1 })

	ws.Close()
	waitFor(t, func() bool { return env.hub.ClientCount() == 0 })
}

func TestSessionCleanupService(t *testing.T) {
	logger := zaptest.NewLogger(t)
	repo := adapters.NewMemorySessionRepository(logger)

	session := entities.NewSessionState("short-lived", time.Millisecond)
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	cleanup := NewSessionCleanupService(repo, 5*time.Millisecond, logger)
	cleanup.Start()
	defer cleanup.Stop()

	waitFor(t, func() bool { return repo.Count() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_ConnectAfterShutdown(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := NewHub(nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()

	select {
	case <-hub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Hub did not stop")
	}

	handled := make(chan error, 1)
	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		err := HandleWebSocketWithAuth(hub, c, "late-session", logger)
		handled <- err
		return err
	})
	server := httptest.NewServer(e)
	defer server.Close()

	ws := dial(t, "ws"+strings.TrimPrefix(server.URL, "http")+"/ws")

	select {
	case err := <-handled:
		if err != nil {
			t.Errorf("Expected a clean return, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Handler blocked on a stopped hub")
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("Expected the server to close the connection")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected no clients, got %d", hub.ClientCount())
	}
}
