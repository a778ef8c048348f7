package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/repositories"
	"github.com/satriahrh/henrietta/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16 << 20 // whole WAV clips arrive as one frame

	// Time allowed for one full turn.
	turnTimeout = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients
type Hub struct {
	// Registered clients.
	clients map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	service   *usecase.SessionService
	validator *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(service *usecase.SessionService, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		service:    service,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("session_id", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("session_id", client.sessionID))

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Closed once the hub drops the client.
	done      chan struct{}
	closeOnce sync.Once

	// Session this connection is bound to
	sessionID string

	logger *zap.Logger

	// Defaults for binary audio frames
	mu       sync.Mutex
	provider repositories.ProviderKind
	language string

	turns sync.WaitGroup
}

// HandleWebSocketWithAuth handles websocket requests for an authenticated session
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		done:      make(chan struct{}),
		sessionID: sessionID,
		logger:    logger.With(zap.String("session_id", sessionID)),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		logger.Warn("WebSocket rejected, hub is stopped")
		conn.Close()
		return nil
	case <-c.Request().Context().Done():
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump pumps messages from the websocket connection to the session service.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.done:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Binary frames are complete live microphone clips
			c.mu.Lock()
			input := usecase.TurnInput{
				Source:       usecase.SourceLiveAudio,
				Audio:        message,
				AudioFormat:  "audio/wav",
				Provider:     c.provider,
				LanguageHint: c.language,
			}
			c.mu.Unlock()
			c.startTurn(input)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}

	c.turns.Wait()
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// processMessage processes incoming JSON messages
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "Invalid message", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *TextTurnMessage:
		c.startTurn(usecase.TurnInput{Source: usecase.SourceText, Text: m.Text})

	case *AudioTurnMessage:
		source, _ := usecase.ParseInputSource(m.Source)
		input := usecase.TurnInput{
			Source:       source,
			Audio:        m.Audio(),
			AudioFormat:  m.Format,
			LanguageHint: m.Language,
		}
		if m.Provider != "" {
			input.Provider, _ = repositories.ParseProviderKind(m.Provider)
		}
		c.startTurn(input)

	case *ConfigureMessage:
		c.mu.Lock()
		if m.Provider != "" {
			c.provider, _ = repositories.ParseProviderKind(m.Provider)
		}
		c.language = m.Language
		provider := c.provider
		c.mu.Unlock()
		c.logger.Info("Connection configured",
			zap.String("provider", string(provider)),
			zap.String("language", m.Language))

	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	}
}

// startTurn runs the turn off the read loop so pings keep flowing
func (c *Client) startTurn(input usecase.TurnInput) {
	c.turns.Add(1)
	go func() {
		defer c.turns.Done()
		c.runTurn(input)
	}()
}

func (c *Client) runTurn(input usecase.TurnInput) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	outcome, err := c.hub.service.Submit(ctx, c.sessionID, input)
	switch {
	case errors.Is(err, usecase.ErrTurnInProgress):
		c.sendJSON(CreateBusyMessage(c.sessionID))
		return
	case errors.Is(err, repositories.ErrSessionNotFound):
		c.sendJSON(CreateErrorMessage("session_not_found", "Session has ended", ""))
		return
	case errors.Is(err, usecase.ErrEmptyInput):
		c.sendJSON(CreateErrorMessage("empty_input", "Please enter a question.", ""))
		return
	case err != nil:
		c.logger.Error("Turn failed", zap.Error(err))
		c.sendJSON(CreateErrorMessage("turn_failed", "Failed to process turn", err.Error()))
		return
	}

	c.sendJSON(CreateTurnMessage(c.sessionID, outcome))

	if outcome.Committed() && !outcome.Audio.IsEmpty() {
		c.queue(WriteData{Type: websocket.BinaryMessage, Payload: outcome.Audio.Data})

		// This connection is the rendering surface for the clip
		if _, err := c.hub.service.Render(ctx, c.sessionID); err != nil {
			c.logger.Warn("Failed to mark reply as rendered", zap.Error(err))
		}
	}
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.queue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// queue hands a frame to the write pump unless the client is gone
func (c *Client) queue(data WriteData) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}
