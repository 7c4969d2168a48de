package voice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvanetti/clara/internal/bridge"
	"github.com/dvanetti/clara/internal/bus"
	"github.com/dvanetti/clara/internal/observability"
	"github.com/dvanetti/clara/internal/session"
)

const subscriberID = "coordinator"

// Options carries the coordinator's tunables.
type Options struct {
	WakeKeyword        string
	Locale             string
	SessionMaxDuration time.Duration
	SilenceWindow      time.Duration
}

// Coordinator owns session lifecycle and turn-taking. Providers report into
// it through callbacks; it translates them into bus events and reacts to the
// bus as an ordinary subscriber, so every state change flows through the bus.
type Coordinator struct {
	opts      Options
	events    *bus.Bus
	sessions  *session.Registry
	responder bridge.Responder
	metrics   *observability.Metrics

	wake WakeWordDetector
	stt  SpeechRecognizer
	tts  SpeechSynthesizer

	mu           sync.Mutex
	maxTimer     *time.Timer
	silenceTimer *time.Timer
}

func NewCoordinator(
	opts Options,
	events *bus.Bus,
	sessions *session.Registry,
	responder bridge.Responder,
	metrics *observability.Metrics,
	wake WakeWordDetector,
	stt SpeechRecognizer,
	tts SpeechSynthesizer,
) *Coordinator {
	if opts.SessionMaxDuration <= 0 {
		opts.SessionMaxDuration = 30 * time.Second
	}
	if opts.SilenceWindow <= 0 {
		opts.SilenceWindow = 4 * time.Second
	}

	c := &Coordinator{
		opts:      opts,
		events:    events,
		sessions:  sessions,
		responder: responder,
		metrics:   metrics,
		wake:      wake,
		stt:       stt,
		tts:       tts,
	}

	wake.OnDetection(func(_ int, keyword string, confidence float64) {
		events.Post(bus.WakeWordDetected{Keyword: keyword, Confidence: confidence})
	})
	stt.OnPartialResult(func(text string) {
		events.Post(bus.STTPartialResult{SessionID: sessions.ActiveID(), Text: text})
	})
	stt.OnFinalResult(func(text string, confidence float64) {
		events.Post(bus.STTFinalResult{SessionID: sessions.ActiveID(), Text: text, Confidence: confidence})
	})
	stt.OnError(func(err error) {
		events.Post(bus.ErrorEvent{Source: "stt", Message: err.Error()})
	})
	tts.OnStarted(func(utteranceID string) {
		events.Post(bus.TTSStarted{UtteranceID: utteranceID})
	})
	tts.OnFinished(func(utteranceID string) {
		events.Post(bus.TTSFinished{UtteranceID: utteranceID})
	})
	tts.OnError(func(err error) {
		events.Post(bus.ErrorEvent{Source: "tts", Message: err.Error()})
	})

	events.Subscribe(subscriberID, c.handle)
	return c
}

// StartVoiceFlow activates the pipeline. A manual activation behaves like a
// wake-word detection: the built-in handler opens the session. No-op when a
// session is already active.
func (c *Coordinator) StartVoiceFlow() error {
	if c.events.SessionState() == bus.SessionStateActive || c.sessions.ActiveID() != "" {
		return nil
	}
	if err := c.wake.Start(c.opts.Locale); err != nil {
		c.events.Post(bus.ErrorEvent{Source: "wake_word", Message: err.Error()})
		return err
	}
	c.events.Post(bus.WakeWordDetected{Keyword: c.opts.WakeKeyword, Confidence: 1.0})
	return nil
}

// StopVoiceFlow ends any open session and stops all three providers,
// regardless of which is currently active. Safe to call repeatedly.
func (c *Coordinator) StopVoiceFlow() {
	if id := c.sessions.ActiveID(); id != "" {
		c.finish(id, "stopped")
	} else {
		c.stopProviders()
	}
	_ = c.wake.Stop()
}

// HandleVoiceInterruption reacts to the user speaking over playback: stop
// synthesis immediately and resume recognition within the same session.
func (c *Coordinator) HandleVoiceInterruption() {
	if c.events.VoiceState() != bus.StateSpeaking {
		return
	}
	_ = c.tts.Stop()
	c.tts.Cancel()

	// An active session makes the built-in wake handler a no-op, so this
	// only moves the pipeline back through Listening.
	c.events.Post(bus.WakeWordDetected{Keyword: c.opts.WakeKeyword, Confidence: 1.0})
	if err := c.stt.Start(c.opts.Locale); err != nil {
		c.events.Post(bus.ErrorEvent{Source: "stt", Message: err.Error()})
		return
	}
	c.events.Post(bus.STTStarted{SessionID: c.sessions.ActiveID()})
}

// HandleAppStateChange tracks app backgrounding. Suspension silences the
// providers; resuming does not auto-restart listening, it requires a fresh
// activation.
func (c *Coordinator) HandleAppStateChange(isActive bool) {
	switch {
	case !isActive && c.events.SessionState() == bus.SessionStateActive:
		id := c.sessions.ActiveID()
		c.cancelTimers()
		c.stopProviders()
		_ = c.wake.Stop()
		c.events.Post(bus.SessionSuspended{SessionID: id})
		c.metrics.SessionEvents.WithLabelValues(string(bus.KindSessionSuspended)).Inc()

	case isActive && c.events.SessionState() == bus.SessionStateSuspended:
		id := c.sessions.ActiveID()
		if _, ok := c.sessions.End(id, "suspended"); ok {
			c.metrics.ActiveSessions.Set(0)
		}
		c.events.Post(bus.SessionResumed{SessionID: id})
		c.metrics.SessionEvents.WithLabelValues(string(bus.KindSessionResumed)).Inc()
	}
}

// SubmitText feeds a typed message through the same pipeline as a spoken one.
// Input while the app is backgrounded is rejected.
func (c *Coordinator) SubmitText(text string) {
	if c.events.SessionState() == bus.SessionStateSuspended {
		return
	}
	id := c.sessions.ActiveID()
	if id == "" {
		s, err := c.sessions.Begin()
		if err != nil {
			return
		}
		id = s.ID
		c.onSessionOpened(id)
	}
	c.events.Post(bus.STTFinalResult{SessionID: id, Text: text, Confidence: 1.0})
}

// handle is the built-in bus subscriber driving the session state machine.
func (c *Coordinator) handle(rec bus.Record) {
	switch ev := rec.Event.(type) {
	case bus.WakeWordDetected:
		c.onWake()
	case bus.STTPartialResult:
		c.resetSilence(ev.SessionID)
		c.sessions.SetTranscript(ev.SessionID, ev.Text, 0, false)
	case bus.STTFinalResult:
		c.sessions.SetTranscript(ev.SessionID, ev.Text, ev.Confidence, true)
		if ev.SessionID != "" && ev.SessionID == c.sessions.ActiveID() {
			// The backend round-trip is not silence; the max-duration timer
			// still bounds the turn.
			c.pauseSilence()
			go func() {
				c.responder.ProcessText(context.Background(), ev.Text, ev.SessionID)
			}()
		}
	case bus.STTStarted:
		c.resetSilence(ev.SessionID)
	case bus.IntentRecognized:
		c.sessions.SetIntent(c.sessions.ActiveID(), ev.Intent, ev.Confidence)
	case bus.ResponseGenerated:
		// A response that outlived its session is dropped, never spoken.
		if ev.SessionID == "" || ev.SessionID != c.sessions.ActiveID() {
			return
		}
		c.sessions.SetResponse(ev.SessionID, ev.Text)
		c.resetSilence(ev.SessionID)
		if err := c.tts.Speak(uuid.NewString(), ev.Text); err != nil {
			c.events.Post(bus.ErrorEvent{Source: "tts", Message: err.Error()})
		}
	case bus.TTSStarted:
		// Playback is not silence; only the max-duration timer keeps running.
		c.pauseSilence()
	case bus.TTSFinished:
		c.finish(c.sessions.ActiveID(), "completed")
	case bus.SessionTimeout:
		c.finish(ev.SessionID, "timeout")
	case bus.SilenceDetected:
		c.finish(ev.SessionID, "silence")
	case bus.ErrorEvent:
		c.finish(c.sessions.ActiveID(), "error")
	}
}

// onWake opens a session on detection. A wake word during an active session
// is ignored, keeping at most one session open.
func (c *Coordinator) onWake() {
	s, err := c.sessions.Begin()
	if err != nil {
		return
	}
	c.onSessionOpened(s.ID)
	if err := c.stt.Start(c.opts.Locale); err != nil {
		c.events.Post(bus.ErrorEvent{Source: "stt", Message: err.Error()})
		return
	}
	c.events.Post(bus.STTStarted{SessionID: s.ID})
}

func (c *Coordinator) onSessionOpened(id string) {
	c.events.Post(bus.SessionStarted{SessionID: id})
	c.metrics.ActiveSessions.Set(1)
	c.metrics.SessionEvents.WithLabelValues(string(bus.KindSessionStarted)).Inc()
	c.armTimers(id)
}

// finish closes the session through any path: explicit stop, completion,
// timeout, silence, or error. Both timers are cancelled and the recognizer
// and synthesizer stopped unconditionally.
func (c *Coordinator) finish(sessionID, reason string) {
	if sessionID == "" {
		return
	}
	ended, ok := c.sessions.End(sessionID, reason)
	if !ok {
		return
	}

	c.cancelTimers()
	c.stopProviders()

	c.events.Post(bus.SessionEnded{SessionID: ended.ID, Reason: reason})
	c.events.Post(bus.STTStopped{SessionID: ended.ID})
	c.metrics.ActiveSessions.Set(0)
	c.metrics.SessionEvents.WithLabelValues(string(bus.KindSessionEnded)).Inc()
}

func (c *Coordinator) stopProviders() {
	_ = c.stt.Stop()
	c.stt.Cancel()
	_ = c.tts.Stop()
	c.tts.Cancel()
}

func (c *Coordinator) armTimers(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()
	c.maxTimer = time.AfterFunc(c.opts.SessionMaxDuration, func() {
		c.events.Post(bus.SessionTimeout{SessionID: sessionID})
		c.metrics.SessionEvents.WithLabelValues(string(bus.KindSessionTimeout)).Inc()
	})
	c.silenceTimer = time.AfterFunc(c.opts.SilenceWindow, func() {
		c.events.Post(bus.SilenceDetected{SessionID: sessionID})
		c.metrics.SessionEvents.WithLabelValues(string(bus.KindSilenceDetected)).Inc()
	})
}

// resetSilence re-arms the silence window on speech-related activity. The
// max-duration timer is never reset.
func (c *Coordinator) resetSilence(sessionID string) {
	if sessionID == "" || sessionID != c.sessions.ActiveID() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
	}
	c.silenceTimer = time.AfterFunc(c.opts.SilenceWindow, func() {
		c.events.Post(bus.SilenceDetected{SessionID: sessionID})
		c.metrics.SessionEvents.WithLabelValues(string(bus.KindSilenceDetected)).Inc()
	})
}

func (c *Coordinator) pauseSilence() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
		c.silenceTimer = nil
	}
}

func (c *Coordinator) cancelTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()
}

func (c *Coordinator) stopTimersLocked() {
	if c.maxTimer != nil {
		c.maxTimer.Stop()
		c.maxTimer = nil
	}
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
		c.silenceTimer = nil
	}
}
