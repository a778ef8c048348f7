package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

const (
	defaultTranslateBaseURL = "https://translate.google.com"
	maxPieceLength          = 100
	mpegFormat              = "audio/mpeg"
)

// GoogleTranslateConfig holds configuration for the Google Translate TTS adapter
type GoogleTranslateConfig struct {
	BaseURL string        // Optional: defaults to https://translate.google.com
	Timeout time.Duration // Optional: per-piece timeout, defaults to 15s
}

// GoogleTranslateTTS implements TextToSpeech using the Google Translate
// speech endpoint. It needs no credentials.
type GoogleTranslateTTS struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*GoogleTranslateTTS)(nil)

// NewGoogleTranslateTTS creates a new Google Translate TTS instance
func NewGoogleTranslateTTS(config GoogleTranslateConfig, logger *zap.Logger) *GoogleTranslateTTS {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultTranslateBaseURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &GoogleTranslateTTS{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SynthesizeAudio fetches each text piece as MP3 and concatenates the frames
func (g *GoogleTranslateTTS) SynthesizeAudio(ctx context.Context, text string, voice repositories.VoiceConfig) (entities.AudioClip, error) {
	pieces := splitText(text, maxPieceLength)
	if len(pieces) == 0 {
		return entities.AudioClip{}, fmt.Errorf("text cannot be empty")
	}

	language := voice.Language
	if language == "" {
		language = repositories.DefaultVoice.Language
	}

	var audio bytes.Buffer
	for i, piece := range pieces {
		data, err := g.fetchPiece(ctx, piece, i, len(pieces), language, voice.Slow)
		if err != nil {
			return entities.AudioClip{}, fmt.Errorf("piece %d of %d: %w", i+1, len(pieces), err)
		}
		audio.Write(data)
	}

	g.logger.Info("Synthesized speech",
		zap.Int("pieces", len(pieces)),
		zap.String("language", language),
		zap.Int("totalBytes", audio.Len()))

	return entities.AudioClip{Data: audio.Bytes(), Format: mpegFormat}, nil
}

func (g *GoogleTranslateTTS) fetchPiece(ctx context.Context, piece string, idx, total int, language string, slow bool) ([]byte, error) {
	speed := "1"
	if slow {
		speed = "0.3"
	}

	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("tl", language)
	query.Set("q", piece)
	query.Set("idx", strconv.Itoa(idx))
	query.Set("total", strconv.Itoa(total))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(piece)))
	query.Set("ttsspeed", speed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", g.baseURL+"/")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		g.logger.Error("Translate TTS returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, fmt.Errorf("translate TTS returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("translate TTS returned no audio")
	}
	return data, nil
}

// splitText cuts text into pieces of at most limit runes, preferring
// sentence ends, then word gaps, and finally a hard cut.
func splitText(text string, limit int) []string {
	var pieces []string
	rest := []rune(strings.Join(strings.Fields(text), " "))

	for len(rest) > 0 {
		if len(rest) <= limit {
			pieces = append(pieces, string(rest))
			break
		}

		cut := lastBoundary(rest[:limit+1], isSentenceEnd)
		if cut <= 0 {
			cut = lastBoundary(rest[:limit+1], unicode.IsSpace)
		}
		if cut <= 0 {
			cut = limit
		}

		piece := strings.TrimSpace(string(rest[:cut]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}

	return pieces
}

// lastBoundary returns the index just past the last rune matching fn
func lastBoundary(runes []rune, fn func(rune) bool) int {
	for i := len(runes) - 1; i > 0; i-- {
		if fn(runes[i]) {
			if unicode.IsSpace(runes[i]) {
				return i
			}
			if i+1 <= len(runes)-1 {
				return i + 1
			}
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', ',':
		return true
	}
	return false
}
