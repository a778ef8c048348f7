package stt

import (
	"bytes"
	"context"
	"errors"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/go-audio/wav"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

const defaultLanguageCode = "en-US"

// recognizer is the subset of the Cloud Speech client used here
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	newClient func(ctx context.Context) (recognizer, error)
	logger    *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a recognizer backed by application default credentials
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{
		newClient: func(ctx context.Context) (recognizer, error) {
			return speech.NewClient(ctx)
		},
		logger: logger,
	}
}

// TranscribeAudio converts a WAV clip to text using Google Cloud Speech-to-Text
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) entities.Transcription {
	recognitionConfig, err := recognitionConfigFromWAV(audioData)
	if err != nil {
		g.logger.Warn("Failed to read WAV header", zap.Error(err), zap.Int("audioSize", len(audioData)))
		return entities.TranscriptionFailed(entities.FailureMalformedAudio)
	}
	recognitionConfig.LanguageCode = languageCode(config.Language)

	client, err := g.newClient(ctx)
	if err != nil {
		g.logger.Error("Failed to create speech client", zap.Error(err))
		return entities.TranscriptionFailed(entities.FailureUnreachable)
	}
	defer client.Close()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		failure := classifyRecognizeError(err)
		g.logger.Error("Speech recognition failed",
			zap.String("failure", failure.String()),
			zap.Error(err))
		return entities.TranscriptionFailed(failure)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		// Take the best alternative
		if transcript := strings.TrimSpace(alternatives[0].GetTranscript()); transcript != "" {
			parts = append(parts, transcript)
		}
	}

	if len(parts) == 0 {
		g.logger.Info("No speech recognized", zap.String("language", recognitionConfig.LanguageCode))
		return entities.TranscriptionFailed(entities.FailureUnintelligible)
	}

	text := strings.Join(parts, " ")
	g.logger.Info("Transcription completed",
		zap.String("language", recognitionConfig.LanguageCode),
		zap.Int("textLength", len(text)))

	return entities.Transcribed(text)
}

// recognitionConfigFromWAV reads sample rate and channel count from the clip header
func recognitionConfigFromWAV(audioData []byte) (*speechpb.RecognitionConfig, error) {
	if len(audioData) == 0 {
		return nil, errors.New("empty audio")
	}

	decoder := wav.NewDecoder(bytes.NewReader(audioData))
	decoder.ReadInfo()
	if err := decoder.Err(); err != nil {
		return nil, err
	}
	if decoder.SampleRate == 0 || decoder.NumChans < 1 || decoder.BitDepth < 8 {
		return nil, errors.New("invalid WAV format header")
	}

	// Let the service read anything other than 16-bit PCM from the header
	encoding := speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	if decoder.WavAudioFormat == 1 && decoder.BitDepth == 16 {
		encoding = speechpb.RecognitionConfig_LINEAR16
	}

	return &speechpb.RecognitionConfig{
		Encoding:          encoding,
		SampleRateHertz:   int32(decoder.SampleRate),
		AudioChannelCount: int32(decoder.NumChans),
	}, nil
}

// languageCode turns a language hint into a BCP-47 code
func languageCode(hint string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "":
		return defaultLanguageCode
	case "english", "en":
		return defaultLanguageCode
	case "korean", "ko", "ko-kr":
		return "ko-KR"
	default:
		return strings.TrimSpace(hint)
	}
}

func classifyRecognizeError(err error) entities.TranscriptionFailure {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return entities.FailureUnreachable
	}

	st, ok := status.FromError(err)
	if !ok {
		return entities.FailureUnreachable
	}

	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return entities.FailureMissingCredential
	case codes.InvalidArgument:
		return entities.FailureMalformedAudio
	default:
		return entities.FailureUnreachable
	}
}
