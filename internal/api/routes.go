package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/repositories"
	"github.com/satriahrh/henrietta/internal/auth"
	"github.com/satriahrh/henrietta/internal/websocket"
	"github.com/satriahrh/henrietta/usecase"
)

const (
	sessionIDKey  = "session_id"
	sessionKey    = "session_token"
	maxUploadSize = 16 << 20

	// Every authenticated response carries a reissued token
	HeaderSessionToken   = "X-Session-Token"
	HeaderTokenExpiresAt = "X-Session-Token-Expires-At"
)

type issuedToken struct {
	value     string
	expiresAt time.Time
}

type handler struct {
	service *usecase.SessionService
	issuer  *auth.TokenIssuer
	hub     *websocket.Hub
	logger  *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, service *usecase.SessionService, issuer *auth.TokenIssuer, logger *zap.Logger) {
	h := &handler{service: service, issuer: issuer, hub: hub, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "henrietta-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/sessions", h.startSession)

	session := v1.Group("/session", h.requireSession)
	session.GET("", h.renderSession)
	session.DELETE("", h.endSession)
	session.POST("/turns/text", h.textTurn)
	session.POST("/turns/audio", h.audioTurn)
	session.GET("/audio", h.replayAudio)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.connectWebSocket, h.requireSession)
}

func (h *handler) startSession(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := h.service.Start(ctx)
	if err != nil {
		h.logger.Error("Failed to start session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to start session",
		})
	}

	token, expiresAt, err := h.issuer.GenerateSessionToken(session.ID)
	if err != nil {
		h.logger.Error("Failed to generate session token",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusCreated, StartSessionResponse{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (h *handler) renderSession(c echo.Context) error {
	view, err := h.service.Render(c.Request().Context(), sessionID(c))
	if err != nil {
		return h.serviceError(c, err)
	}
	resp := newSessionView(view)
	resp.Token, resp.TokenExpiresAt = currentToken(c)
	return c.JSON(http.StatusOK, resp)
}

func (h *handler) endSession(c echo.Context) error {
	if err := h.service.End(c.Request().Context(), sessionID(c)); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) textTurn(c echo.Context) error {
	var req TextTurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	return h.submit(c, usecase.TurnInput{Source: usecase.SourceText, Text: req.Text})
}

func (h *handler) audioTurn(c echo.Context) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "An audio file is required",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Could not read audio file",
		})
	}
	defer src.Close()

	audio, err := io.ReadAll(io.LimitReader(src, maxUploadSize+1))
	if err != nil || len(audio) > maxUploadSize {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Audio file is unreadable or too large",
		})
	}

	input := usecase.TurnInput{
		Source:       usecase.SourceUploadedAudio,
		Audio:        audio,
		AudioFormat:  file.Header.Get("Content-Type"),
		LanguageHint: c.FormValue("language"),
	}

	if source := c.FormValue("source"); source != "" {
		parsed, err := usecase.ParseInputSource(source)
		if err != nil || !parsed.IsAudio() {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_source",
				Message: "source must be one of: live_audio, uploaded_audio",
			})
		}
		input.Source = parsed
	}

	if provider := c.FormValue("provider"); provider != "" {
		parsed, err := repositories.ParseProviderKind(provider)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_provider",
				Message: err.Error(),
			})
		}
		input.Provider = parsed
	}

	return h.submit(c, input)
}

func (h *handler) submit(c echo.Context, input usecase.TurnInput) error {
	outcome, err := h.service.Submit(c.Request().Context(), sessionID(c), input)
	if err != nil {
		return h.serviceError(c, err)
	}

	if outcome.InputError != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "turn_rejected",
			Message: outcome.InputError.Message,
		})
	}

	resp := newTurnResponse(outcome)
	resp.Token, resp.TokenExpiresAt = currentToken(c)
	return c.JSON(http.StatusOK, resp)
}

func (h *handler) replayAudio(c echo.Context) error {
	clip, err := h.service.Replay(c.Request().Context(), sessionID(c))
	if err != nil {
		return h.serviceError(c, err)
	}
	if clip.IsEmpty() {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "no_audio",
			Message: "No reply audio to replay",
		})
	}
	return c.Blob(http.StatusOK, clip.Format, clip.Data)
}

func (h *handler) connectWebSocket(c echo.Context) error {
	id := sessionID(c)

	// The socket is bound to a live session
	if _, err := h.service.Get(c.Request().Context(), id); err != nil {
		return h.serviceError(c, err)
	}

	h.logger.Info("WebSocket connection authenticated", zap.String("session_id", id))
	return websocket.HandleWebSocketWithAuth(h.hub, c, id, h.logger)
}

// requireSession validates the session token from the Authorization header
// and reissues it, so an active session never outlives its token.
// Browsers cannot set headers on a WebSocket handshake, so the token query
// parameter is accepted as well.
func (h *handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request().Header.Get("Authorization"))
		if token == "" {
			token = c.QueryParam("token")
		}

		if token == "" {
			h.logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "Session token is required in Authorization header",
			})
		}

		claims, err := h.issuer.ValidateToken(token)
		if err != nil {
			h.logger.Warn("Request rejected: invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired session token",
			})
		}

		c.Set(sessionIDKey, claims.SessionID)

		fresh, expiresAt, err := h.issuer.GenerateSessionToken(claims.SessionID)
		if err != nil {
			h.logger.Error("Failed to reissue session token", zap.Error(err))
		} else {
			c.Set(sessionKey, issuedToken{value: fresh, expiresAt: expiresAt})
			c.Response().Header().Set(HeaderSessionToken, fresh)
			c.Response().Header().Set(HeaderTokenExpiresAt, expiresAt.Format(time.RFC3339))
		}

		return next(c)
	}
}

func (h *handler) serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrTurnInProgress):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "turn_in_progress",
			Message: "Please wait for the current answer to finish.",
		})
	case errors.Is(err, repositories.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "Session has ended",
		})
	case errors.Is(err, usecase.ErrEmptyInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "empty_input",
			Message: "Please enter a question.",
		})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to process request",
		})
	}
}

func bearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

func currentToken(c echo.Context) (string, time.Time) {
	token, _ := c.Get(sessionKey).(issuedToken)
	return token.value, token.expiresAt
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionIDKey).(string)
	return id
}
