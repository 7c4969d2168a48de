package voice

// WakeWordDetector listens for the activation keyword. Callbacks fire on the
// provider's own goroutine; implementations must tolerate Stop and Cancel at
// any time, including when not started.
type WakeWordDetector interface {
	Start(locale string) error
	Stop() error
	Cancel()
	OnDetection(fn func(keywordIndex int, keyword string, confidence float64))
}

// SpeechRecognizer streams partial transcripts and at most one final result
// per Start. Stop asks for a graceful finish; Cancel abandons the stream.
type SpeechRecognizer interface {
	Start(locale string) error
	Stop() error
	Cancel()
	OnPartialResult(fn func(text string))
	OnFinalResult(fn func(text string, confidence float64))
	OnError(fn func(err error))
}

// SpeechSynthesizer speaks one utterance at a time. Stop halts mid-utterance
// without firing OnFinished.
type SpeechSynthesizer interface {
	Speak(utteranceID, text string) error
	Stop() error
	Cancel()
	OnStarted(fn func(utteranceID string))
	OnFinished(fn func(utteranceID string))
	OnError(fn func(err error))
}
