package bus

import (
	"context"
	"sync"
	"time"

	"github.com/dvanetti/clara/internal/observability"
)

// VoiceState is the single derived voice pipeline state.
type VoiceState string

const (
	StateIdle       VoiceState = "idle"
	StateListening  VoiceState = "listening"
	StateProcessing VoiceState = "processing"
	StateSpeaking   VoiceState = "speaking"
	StateError      VoiceState = "error"
)

// SessionState tracks app-level session activity, independent of VoiceState.
type SessionState string

const (
	SessionStateInactive  SessionState = "inactive"
	SessionStateActive    SessionState = "active"
	SessionStateSuspended SessionState = "suspended"
)

// Record is an event as observed on the bus, stamped at post time.
type Record struct {
	At    time.Time `json:"at"`
	Kind  Kind      `json:"kind"`
	Key   string    `json:"key"`
	Event Event     `json:"event"`
}

// Handler receives bus events on the delivery goroutine.
type Handler func(Record)

const (
	queueCapacity   = 256
	historyCapacity = 100
)

type subscriber struct {
	id      string
	handler Handler
}

// Bus is the single process-wide voice event channel. Post never blocks;
// delivery is FIFO on one dedicated goroutine, and the derived states are
// committed before any handler observes the triggering event.
type Bus struct {
	metrics *observability.Metrics
	queue   chan Record

	mu           sync.RWMutex
	subscribers  []subscriber
	history      []Record
	voiceState   VoiceState
	sessionState SessionState
}

func New(metrics *observability.Metrics) *Bus {
	return &Bus{
		metrics:      metrics,
		queue:        make(chan Record, queueCapacity),
		voiceState:   StateIdle,
		sessionState: SessionStateInactive,
	}
}

// Start launches the delivery goroutine. It exits when ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rec := <-b.queue:
				b.dispatch(rec)
			}
		}
	}()
}

// Post enqueues an event for asynchronous delivery. It never blocks: if the
// queue is saturated the event is dropped and counted.
func (b *Bus) Post(e Event) {
	rec := Record{
		At:    time.Now().UTC(),
		Kind:  e.EventKind(),
		Key:   e.Key(),
		Event: e,
	}
	select {
	case b.queue <- rec:
		b.metrics.BusEvents.WithLabelValues(string(rec.Kind)).Inc()
	default:
		b.metrics.BusDropped.Inc()
	}
}

// Subscribe registers a named handler. Re-subscribing an existing id replaces
// its handler in place, keeping the original delivery position.
func (b *Bus) Subscribe(id string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subscribers {
		if b.subscribers[i].id == id {
			b.subscribers[i].handler = h
			return
		}
	}
	b.subscribers = append(b.subscribers, subscriber{id: id, handler: h})
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subscribers {
		if b.subscribers[i].id == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

func (b *Bus) VoiceState() VoiceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.voiceState
}

func (b *Bus) SessionState() SessionState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sessionState
}

// History returns the most recent events, oldest first. Introspection only;
// never used for replay.
func (b *Bus) History() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Record, len(b.history))
	copy(out, b.history)
	return out
}

func (b *Bus) dispatch(rec Record) {
	b.mu.Lock()
	b.appendHistory(rec)

	prevVoice := b.voiceState
	nextVoice := DeriveVoiceState(prevVoice, rec.Event)
	b.voiceState = nextVoice

	prevSession := b.sessionState
	b.sessionState = deriveSessionState(prevSession, rec.Event)

	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	deliver(subs, rec)

	if nextVoice != prevVoice {
		b.metrics.StateTransitions.WithLabelValues(string(prevVoice), string(nextVoice)).Inc()
		changed := Record{
			At:    time.Now().UTC(),
			Kind:  KindStateChanged,
			Event: StateChanged{From: prevVoice, To: nextVoice},
		}
		changed.Key = changed.Event.Key()
		b.mu.Lock()
		b.appendHistory(changed)
		b.mu.Unlock()
		b.metrics.BusEvents.WithLabelValues(string(KindStateChanged)).Inc()
		deliver(subs, changed)
	}
}

func (b *Bus) appendHistory(rec Record) {
	b.history = append(b.history, rec)
	if len(b.history) > historyCapacity {
		b.history = b.history[len(b.history)-historyCapacity:]
	}
}

func deliver(subs []subscriber, rec Record) {
	for _, s := range subs {
		func() {
			// A panic in one handler must not starve the others.
			defer func() { _ = recover() }()
			s.handler(rec)
		}()
	}
}

// DeriveVoiceState is the pure state-derivation rule. Replaying the same
// event sequence from Idle always yields the same final state.
func DeriveVoiceState(current VoiceState, e Event) VoiceState {
	switch ev := e.(type) {
	case WakeWordDetected:
		return StateListening
	case STTStarted:
		return StateProcessing
	case STTStopped:
		return StateIdle
	case TTSStarted:
		return StateSpeaking
	case TTSFinished:
		return StateIdle
	case ErrorEvent:
		// Provider failures resolve to Idle so the machine stays ready for a
		// fresh session; anything else parks in Error.
		switch ev.Source {
		case "stt", "tts":
			return StateIdle
		default:
			return StateError
		}
	default:
		return current
	}
}

func deriveSessionState(current SessionState, e Event) SessionState {
	switch e.(type) {
	case SessionStarted:
		return SessionStateActive
	case SessionEnded, SessionTimeout:
		return SessionStateInactive
	case SessionSuspended:
		return SessionStateSuspended
	case SessionResumed:
		// Resuming never auto-restarts listening; a new activation is required.
		return SessionStateInactive
	default:
		return current
	}
}
