package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/henrietta/adapters/llm"
	"github.com/satriahrh/henrietta/adapters/stt"
	"github.com/satriahrh/henrietta/adapters/tts"
	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
	"github.com/satriahrh/henrietta/internal/persona"
)

type pipelineFixture struct {
	speech *stt.MockSpeechToText
	model  *llm.MockLLM
	voice  *tts.MockTTS
	*TurnPipeline
}

func newPipelineFixture(t *testing.T, speech *stt.MockSpeechToText, model *llm.MockLLM, voice *tts.MockTTS) pipelineFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	p, err := persona.Default()
	if err != nil {
		t.Fatalf("Failed to load persona: %v", err)
	}

	transcriber := NewTranscriber(map[repositories.ProviderKind]repositories.SpeechToText{
		repositories.ProviderGoogle: speech,
	}, repositories.ProviderGoogle, logger)

	return pipelineFixture{
		speech: speech,
		model:  model,
		voice:  voice,
		TurnPipeline: NewTurnPipeline(
			transcriber,
			NewResponder(model, p, logger),
			NewSynthesizer(voice, logger),
			logger,
		),
	}
}

func defaultFixture(t *testing.T) pipelineFixture {
	return newPipelineFixture(t,
		stt.NewMockSpeechToText("Who were your children?", zap.NewNop()),
		llm.NewMockLLM("I had five children: Lawrence, Elsie, Sonny, Deborah and Joe."),
		tts.NewMockTTS([]byte{0xff, 0xfb}),
	)
}

func TestProcessTextTurn(t *testing.T) {
	f := defaultFixture(t)
	state := entities.NewSessionState("s1", 0)

	outcome := f.Process(context.Background(), state.Snapshot(), TurnInput{
		Source: SourceText,
		Text:   "  Who were your children?  ",
	})

	wantStages := []Stage{StageIdle, StageResponding, StageSynthesizing, StageCommitted}
	if !reflect.DeepEqual(outcome.Stages, wantStages) {
		t.Errorf("Stages = %v, want %v", outcome.Stages, wantStages)
	}
	if !outcome.Committed() {
		t.Fatal("Text turn should commit")
	}
	if f.speech.Calls() != 0 {
		t.Error("Text turn must not invoke transcription")
	}

	state.Apply(outcome.Delta)

	if len(state.Transcript) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(state.Transcript))
	}
	if state.Transcript[0].Role != entities.MessageRoleUser || state.Transcript[0].Text != "Who were your children?" {
		t.Errorf("Unexpected user turn %+v", state.Transcript[0])
	}
	if state.Transcript[1].Role != entities.MessageRoleAssistant || state.Transcript[1].Text == "" {
		t.Errorf("Unexpected assistant turn %+v", state.Transcript[1])
	}
	if !state.IsPlaying || state.PendingAudio.IsEmpty() {
		t.Error("Synthesized reply should be pending and playing")
	}

	prompts := f.model.Prompts()
	if len(prompts) != 1 || !strings.HasSuffix(prompts[0], "User asks: Who were your children?\n\nHenrietta Lacks responds:") {
		t.Errorf("Unexpected prompt %q", prompts)
	}
	if texts := f.voice.Texts(); len(texts) != 1 || texts[0] != outcome.ReplyText {
		t.Errorf("Synthesizer should speak the reply, got %v", texts)
	}
}

func TestProcessBlankTextIsRejected(t *testing.T) {
	f := defaultFixture(t)
	state := entities.NewSessionState("s1", 0)

	outcome := f.Process(context.Background(), state.Snapshot(), TurnInput{Source: SourceText, Text: " \n\t"})

	if outcome.Final != StageIdle || outcome.InputError == nil {
		t.Fatalf("Blank text should be rejected, got %+v", outcome)
	}
	if !errors.Is(outcome.InputError, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", outcome.InputError.Reason)
	}
	if !outcome.Delta.IsEmpty() {
		t.Error("Rejected text must not change state")
	}
	if len(f.model.Prompts()) != 0 {
		t.Error("Responder must not run for blank text")
	}
}

func TestProcessAudioTurn(t *testing.T) {
	f := defaultFixture(t)
	state := entities.NewSessionState("s1", 0)
	clip := []byte("RIFF fake wav clip")

	outcome := f.Process(context.Background(), state.Snapshot(), TurnInput{
		Source:       SourceLiveAudio,
		Audio:        clip,
		AudioFormat:  "audio/wav",
		LanguageHint: "Korean",
	})

	wantStages := []Stage{StageIdle, StageTranscribing, StageResponding, StageSynthesizing, StageCommitted}
	if !reflect.DeepEqual(outcome.Stages, wantStages) {
		t.Errorf("Stages = %v, want %v", outcome.Stages, wantStages)
	}
	if outcome.UserText != "Who were your children?" {
		t.Errorf("Unexpected user text %q", outcome.UserText)
	}
	if cfg := f.speech.LastConfig(); cfg.Language != "Korean" || cfg.Format != "audio/wav" {
		t.Errorf("Language hint and format should reach the provider, got %+v", cfg)
	}

	state.Apply(outcome.Delta)
	if state.LastInputFingerprint != entities.FingerprintAudio(clip) {
		t.Error("Audio turn should record the clip fingerprint")
	}
}

func TestProcessDuplicateClipIsTranscribedOnce(t *testing.T) {
	f := defaultFixture(t)
	state := entities.NewSessionState("s1", 0)
	input := TurnInput{Source: SourceLiveAudio, Audio: []byte("same clip")}

	first := f.Process(context.Background(), state.Snapshot(), input)
	state.Apply(first.Delta)

	second := f.Process(context.Background(), state.Snapshot(), input)

	if f.speech.Calls() != 1 {
		t.Errorf("Expected one transcription, got %d", f.speech.Calls())
	}
	if second.InputError == nil || !errors.Is(second.InputError, ErrDuplicateAudio) {
		t.Errorf("Expected duplicate rejection, got %+v", second.InputError)
	}
	if !second.Delta.IsEmpty() {
		t.Error("Duplicate clip must not change state")
	}
	if len(state.Transcript) != 2 {
		t.Errorf("Expected 2 turns, got %d", len(state.Transcript))
	}
}

func TestProcessSentinelTranscription(t *testing.T) {
	failures := []entities.TranscriptionFailure{
		entities.FailureUnintelligible,
		entities.FailureUnreachable,
		entities.FailureMissingCredential,
		entities.FailureMalformedAudio,
	}

	for _, failure := range failures {
		t.Run(failure.String(), func(t *testing.T) {
			f := newPipelineFixture(t,
				stt.NewFailingSpeechToText(failure, zap.NewNop()),
				llm.NewMockLLM("unused"),
				tts.NewMockTTS([]byte{1}),
			)
			state := entities.NewSessionState("s1", 0)
			clip := []byte("garbled")

			outcome := f.Process(context.Background(), state.Snapshot(), TurnInput{Source: SourceUploadedAudio, Audio: clip})
			state.Apply(outcome.Delta)

			if outcome.Final != StageIdle {
				t.Errorf("Expected IDLE, got %s", outcome.Final)
			}
			if outcome.InputError == nil || outcome.InputError.Message != failure.Sentinel() {
				t.Fatalf("Expected sentinel input error, got %+v", outcome.InputError)
			}
			if outcome.InputError.Failure != failure {
				t.Errorf("Expected failure %s, got %s", failure, outcome.InputError.Failure)
			}
			if len(state.Transcript) != 0 {
				t.Error("Sentinel must never reach the transcript")
			}
			if state.LastInputFingerprint != entities.FingerprintAudio(clip) {
				t.Error("Rejected clip fingerprint should be recorded")
			}
			if len(f.model.Prompts()) != 0 {
				t.Error("Responder must not run for a sentinel")
			}
		})
	}
}

func TestProcessEmptyAudio(t *testing.T) {
	f := defaultFixture(t)
	state := entities.NewSessionState("s1", 0)

	outcome := f.Process(context.Background(), state.Snapshot(), TurnInput{Source: SourceLiveAudio})

	if outcome.InputError == nil || !errors.Is(outcome.InputError, ErrEmptyInput) {
		t.Fatalf("Expected empty input rejection, got %+v", outcome.InputError)
	}
	if !reflect.DeepEqual(outcome.Stages, []Stage{StageIdle}) {
		t.Errorf("Empty clip should never enter TRANSCRIBING, got %v", outcome.Stages)
	}
	if f.speech.Calls() != 0 {
		t.Error("Empty clip must not be transcribed")
	}
}

func TestProcessResponderFailureBecomesReply(t *testing.T) {
	f := newPipelineFixture(t,
		stt.NewMockSpeechToText("hi", zap.NewNop()),
		llm.NewFailingLLM(errors.New("quota exceeded")),
		tts.NewMockTTS([]byte{1}),
	)
	state := entities.NewSessionState("s1", 0)

	outcome := f.Process(context.Background(), state.Snapshot(), TurnInput{Source: SourceText, Text: "hello"})

	if !outcome.Committed() {
		t.Fatal("Responder failure should still commit")
	}
	if outcome.ReplyText != "I'm sorry, there was an error: quota exceeded" {
		t.Errorf("Unexpected apology %q", outcome.ReplyText)
	}
	if texts := f.voice.Texts(); len(texts) != 1 || texts[0] != outcome.ReplyText {
		t.Error("Apology should be spoken like any reply")
	}
}

func TestProcessSynthesisFailureKeepsPriorAudio(t *testing.T) {
	f := newPipelineFixture(t,
		stt.NewMockSpeechToText("hi", zap.NewNop()),
		llm.NewMockLLM("Hello, child."),
		tts.NewFailingTTS(errors.New("rate limited")),
	)
	state := entities.NewSessionState("s1", 0)
	state.Apply(entities.StateDelta{Audio: &entities.AudioClip{Data: []byte{7}, Format: "audio/mpeg"}})
	state.MarkRendered()

	outcome := f.Process(context.Background(), state.Snapshot(), TurnInput{Source: SourceText, Text: "hello"})
	state.Apply(outcome.Delta)

	if !outcome.Committed() {
		t.Fatal("Synthesis failure should still commit")
	}
	if len(outcome.Notices) != 1 || outcome.Notices[0] != "Error in text-to-speech: rate limited" {
		t.Errorf("Unexpected notices %v", outcome.Notices)
	}
	if !outcome.Audio.IsEmpty() || outcome.Delta.Audio != nil {
		t.Error("Failed synthesis should produce no audio")
	}
	if len(state.Transcript) != 2 {
		t.Errorf("Expected 2 turns, got %d", len(state.Transcript))
	}
	if state.IsPlaying {
		t.Error("IsPlaying should keep its prior value")
	}
	if len(state.PendingAudio.Data) != 1 || state.PendingAudio.Data[0] != 7 {
		t.Error("Prior pending audio should be kept")
	}
}

func TestProcessDoesNotMutateSnapshot(t *testing.T) {
	f := defaultFixture(t)
	state := entities.NewSessionState("s1", 0)
	snapshot := state.Snapshot()

	f.Process(context.Background(), snapshot, TurnInput{Source: SourceText, Text: "hello"})

	if len(snapshot.Transcript) != 0 || snapshot.IsPlaying {
		t.Error("Process must not mutate the snapshot")
	}
}

func TestTranscriberUnknownProvider(t *testing.T) {
	transcriber := NewTranscriber(map[repositories.ProviderKind]repositories.SpeechToText{}, repositories.ProviderGoogle, zaptest.NewLogger(t))

	result := transcriber.Transcribe(context.Background(), []byte{1}, "", repositories.ProviderWhisper, "")

	if result.Failure != entities.FailureUnreachable {
		t.Errorf("Expected unreachable for unconfigured provider, got %s", result.Failure)
	}
}

func TestParseInputSource(t *testing.T) {
	for input, want := range map[string]InputSource{
		"live_audio":     SourceLiveAudio,
		"Uploaded_Audio": SourceUploadedAudio,
		" text ":         SourceText,
	} {
		got, err := ParseInputSource(input)
		if err != nil || got != want {
			t.Errorf("ParseInputSource(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseInputSource("video"); err == nil {
		t.Error("Unknown source should fail")
	}
}
