// Command democlient starts a session against a running server, asks one
// question over the WebSocket and saves the spoken reply.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type startSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	server := flag.String("server", "localhost:8080", "server host:port")
	question := flag.String("question", "Who were your children?", "question to ask when no audio file is given")
	audioPath := flag.String("audio", "", "WAV file to send as a live microphone clip")
	provider := flag.String("provider", "", "speech recognition provider for the clip")
	language := flag.String("language", "", "language hint for the clip")
	outDir := flag.String("out", "audio_responses", "directory for reply audio")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	session, err := startSession(*server)
	if err != nil {
		logger.Fatal("Failed to start session", zap.Error(err))
	}
	logger.Info("Session started", zap.String("session_id", session.SessionID))

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+session.Token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer c.Close()

	if *audioPath != "" {
		err = sendClip(c, *audioPath, *provider, *language)
	} else {
		err = c.WriteJSON(map[string]string{"type": "text_turn", "text": *question})
	}
	if err != nil {
		logger.Fatal("Failed to send turn", zap.Error(err))
	}

	if err := awaitReply(c, *outDir, logger); err != nil {
		logger.Fatal("Turn failed", zap.Error(err))
	}

	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func startSession(server string) (*startSessionResponse, error) {
	resp, err := http.Post("http://"+server+"/api/v1/sessions", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("start session failed: %s", string(body))
	}

	var session startSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// sendClip configures the connection and sends the whole file as one frame
func sendClip(c *websocket.Conn, path, provider, language string) error {
	clip, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if provider != "" || language != "" {
		configure := map[string]string{"type": "configure", "provider": provider, "language": language}
		if err := c.WriteJSON(configure); err != nil {
			return err
		}
	}
	return c.WriteMessage(websocket.BinaryMessage, clip)
}

// awaitReply reads until the turn is settled, saving the reply audio
func awaitReply(c *websocket.Conn, outDir string, logger *zap.Logger) error {
	c.SetReadDeadline(time.Now().Add(3 * time.Minute))

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			return err
		}

		if messageType == websocket.BinaryMessage {
			return saveAudio(outDir, message, logger)
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("unmarshal error", zap.Error(err))
			continue
		}

		switch msg["type"] {
		case "turn_committed":
			logger.Info("Turn committed",
				zap.Any("user_text", msg["user_text"]),
				zap.Any("reply_text", msg["reply_text"]),
				zap.Any("notices", msg["notices"]))
			if hasAudio, _ := msg["has_audio"].(bool); !hasAudio {
				return nil
			}
		case "turn_rejected", "turn_busy":
			return fmt.Errorf("%v", msg["message"])
		case "error":
			return fmt.Errorf("%v: %v", msg["error_code"], msg["message"])
		default:
			logger.Debug("Ignoring message", zap.Any("type", msg["type"]))
		}
	}
}

func saveAudio(outDir string, audio []byte, logger *zap.Logger) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(outDir, fmt.Sprintf("%d.mp3", time.Now().Unix()))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return err
	}
	logger.Info("Saved reply audio", zap.String("path", path), zap.Int("bytes", len(audio)))
	return nil
}
