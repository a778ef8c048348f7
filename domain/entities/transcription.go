package entities

import "strings"

// TranscriptionFailure tags why a transcription did not produce usable text
type TranscriptionFailure int

const (
	FailureNone TranscriptionFailure = iota
	FailureUnintelligible
	FailureUnreachable
	FailureMissingCredential
	FailureMalformedAudio
)

var sentinels = map[TranscriptionFailure]string{
	FailureUnintelligible:    "Could not understand audio",
	FailureUnreachable:       "Error connecting to speech recognition service",
	FailureMissingCredential: "Speech recognition service unavailable",
	FailureMalformedAudio:    "Error processing audio file",
}

// Sentinel returns the user facing text for the failure
func (f TranscriptionFailure) Sentinel() string {
	return sentinels[f]
}

func (f TranscriptionFailure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureUnintelligible:
		return "unintelligible"
	case FailureUnreachable:
		return "unreachable"
	case FailureMissingCredential:
		return "missing_credential"
	case FailureMalformedAudio:
		return "malformed_audio"
	default:
		return "unknown"
	}
}

// IsSentinel reports whether text is one of the reserved failure strings
func IsSentinel(text string) bool {
	text = strings.TrimSpace(text)
	for _, sentinel := range sentinels {
		if text == sentinel {
			return true
		}
	}
	return false
}

// Transcription is the result of converting speech to text. A failed
// transcription carries the sentinel string of its failure as Text.
type Transcription struct {
	Text    string
	Failure TranscriptionFailure
}

// Transcribed wraps recognized text
func Transcribed(text string) Transcription {
	return Transcription{Text: text}
}

// TranscriptionFailed builds the tagged result for a failure
func TranscriptionFailed(failure TranscriptionFailure) Transcription {
	return Transcription{Text: failure.Sentinel(), Failure: failure}
}

// Usable reports whether the text may be forwarded to the responder
func (t Transcription) Usable() bool {
	if t.Failure != FailureNone {
		return false
	}
	text := strings.TrimSpace(t.Text)
	return text != "" && !IsSentinel(text)
}
