package bus

import "fmt"

// Kind identifies voice event variants.
type Kind string

const (
	KindWakeWordDetected  Kind = "wake_word_detected"
	KindSTTStarted        Kind = "stt_started"
	KindSTTPartialResult  Kind = "stt_partial_result"
	KindSTTFinalResult    Kind = "stt_final_result"
	KindSTTStopped        Kind = "stt_stopped"
	KindTTSStarted        Kind = "tts_started"
	KindTTSFinished       Kind = "tts_finished"
	KindSessionStarted    Kind = "session_started"
	KindSessionEnded      Kind = "session_ended"
	KindSessionTimeout    Kind = "session_timeout"
	KindSessionSuspended  Kind = "session_suspended"
	KindSessionResumed    Kind = "session_resumed"
	KindSilenceDetected   Kind = "silence_detected"
	KindIntentRecognized  Kind = "intent_recognized"
	KindResponseGenerated Kind = "response_generated"
	KindStateChanged      Kind = "state_changed"
	KindError             Kind = "error"
)

// Event is one immutable voice event. Key is a derived identity used for
// deduplication and equality, never for ordering.
type Event interface {
	EventKind() Kind
	Key() string
}

type WakeWordDetected struct {
	Keyword    string  `json:"keyword"`
	Confidence float64 `json:"confidence"`
}

func (e WakeWordDetected) EventKind() Kind { return KindWakeWordDetected }
func (e WakeWordDetected) Key() string     { return string(KindWakeWordDetected) + "|" + e.Keyword }

type STTStarted struct {
	SessionID string `json:"session_id"`
}

func (e STTStarted) EventKind() Kind { return KindSTTStarted }
func (e STTStarted) Key() string     { return string(KindSTTStarted) + "|" + e.SessionID }

type STTPartialResult struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (e STTPartialResult) EventKind() Kind { return KindSTTPartialResult }
func (e STTPartialResult) Key() string {
	return string(KindSTTPartialResult) + "|" + e.SessionID + "|" + e.Text
}

type STTFinalResult struct {
	SessionID  string  `json:"session_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (e STTFinalResult) EventKind() Kind { return KindSTTFinalResult }
func (e STTFinalResult) Key() string {
	return string(KindSTTFinalResult) + "|" + e.SessionID + "|" + e.Text
}

type STTStopped struct {
	SessionID string `json:"session_id"`
}

func (e STTStopped) EventKind() Kind { return KindSTTStopped }
func (e STTStopped) Key() string     { return string(KindSTTStopped) + "|" + e.SessionID }

type TTSStarted struct {
	UtteranceID string `json:"utterance_id"`
}

func (e TTSStarted) EventKind() Kind { return KindTTSStarted }
func (e TTSStarted) Key() string     { return string(KindTTSStarted) + "|" + e.UtteranceID }

type TTSFinished struct {
	UtteranceID string `json:"utterance_id"`
}

func (e TTSFinished) EventKind() Kind { return KindTTSFinished }
func (e TTSFinished) Key() string     { return string(KindTTSFinished) + "|" + e.UtteranceID }

type SessionStarted struct {
	SessionID string `json:"session_id"`
}

func (e SessionStarted) EventKind() Kind { return KindSessionStarted }
func (e SessionStarted) Key() string     { return string(KindSessionStarted) + "|" + e.SessionID }

type SessionEnded struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

func (e SessionEnded) EventKind() Kind { return KindSessionEnded }
func (e SessionEnded) Key() string     { return string(KindSessionEnded) + "|" + e.SessionID }

type SessionTimeout struct {
	SessionID string `json:"session_id"`
}

func (e SessionTimeout) EventKind() Kind { return KindSessionTimeout }
func (e SessionTimeout) Key() string     { return string(KindSessionTimeout) + "|" + e.SessionID }

type SessionSuspended struct {
	SessionID string `json:"session_id"`
}

func (e SessionSuspended) EventKind() Kind { return KindSessionSuspended }
func (e SessionSuspended) Key() string     { return string(KindSessionSuspended) + "|" + e.SessionID }

type SessionResumed struct {
	SessionID string `json:"session_id"`
}

func (e SessionResumed) EventKind() Kind { return KindSessionResumed }
func (e SessionResumed) Key() string     { return string(KindSessionResumed) + "|" + e.SessionID }

type SilenceDetected struct {
	SessionID string `json:"session_id"`
}

func (e SilenceDetected) EventKind() Kind { return KindSilenceDetected }
func (e SilenceDetected) Key() string     { return string(KindSilenceDetected) + "|" + e.SessionID }

type IntentRecognized struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (e IntentRecognized) EventKind() Kind { return KindIntentRecognized }
func (e IntentRecognized) Key() string     { return string(KindIntentRecognized) + "|" + e.Intent }

type ResponseGenerated struct {
	SessionID  string `json:"session_id"`
	Text       string `json:"text"`
	SourceType string `json:"source_type"`
}

func (e ResponseGenerated) EventKind() Kind { return KindResponseGenerated }
func (e ResponseGenerated) Key() string {
	return string(KindResponseGenerated) + "|" + e.SessionID + "|" + e.SourceType
}

type StateChanged struct {
	From VoiceState `json:"from"`
	To   VoiceState `json:"to"`
}

func (e StateChanged) EventKind() Kind { return KindStateChanged }
func (e StateChanged) Key() string {
	return fmt.Sprintf("%s|%s>%s", KindStateChanged, e.From, e.To)
}

// ErrorEvent carries a provider or bridge failure. Source is the failing
// component ("stt", "tts", "wake_word", "bridge", ...).
type ErrorEvent struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (e ErrorEvent) EventKind() Kind { return KindError }
func (e ErrorEvent) Key() string     { return string(KindError) + "|" + e.Source + "|" + e.Message }
