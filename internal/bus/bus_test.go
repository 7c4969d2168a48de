package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dvanetti/clara/internal/observability"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	m := observability.NewMetrics(fmt.Sprintf("clara_test_bus_%d", time.Now().UnixNano()))
	b := New(m)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b.Start(ctx)
	return b
}

func collect(t *testing.T, b *Bus, id string) <-chan Record {
	t.Helper()
	ch := make(chan Record, 64)
	b.Subscribe(id, func(rec Record) {
		ch <- rec
	})
	return ch
}

func nextRecord(t *testing.T, ch <-chan Record) Record {
	t.Helper()
	select {
	case rec := <-ch:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Record{}
	}
}

func TestDeriveVoiceStateIsDeterministic(t *testing.T) {
	seq := []Event{
		WakeWordDetected{Keyword: "clara", Confidence: 0.9},
		STTStarted{SessionID: "s1"},
		STTStopped{SessionID: "s1"},
		TTSStarted{UtteranceID: "u1"},
		TTSFinished{UtteranceID: "u1"},
		ErrorEvent{Source: "bridge", Message: "boom"},
	}
	want := []VoiceState{StateListening, StateProcessing, StateIdle, StateSpeaking, StateIdle, StateError}

	for run := 0; run < 3; run++ {
		state := StateIdle
		for i, e := range seq {
			state = DeriveVoiceState(state, e)
			if state != want[i] {
				t.Fatalf("run %d event %d: state = %q, want %q", run, i, state, want[i])
			}
		}
	}
}

func TestDeriveVoiceStateProviderErrorsResolveIdle(t *testing.T) {
	if got := DeriveVoiceState(StateProcessing, ErrorEvent{Source: "stt", Message: "mic gone"}); got != StateIdle {
		t.Fatalf("stt error state = %q, want %q", got, StateIdle)
	}
	if got := DeriveVoiceState(StateSpeaking, ErrorEvent{Source: "tts", Message: "engine gone"}); got != StateIdle {
		t.Fatalf("tts error state = %q, want %q", got, StateIdle)
	}
}

func TestStateChangedFollowsTrigger(t *testing.T) {
	b := newTestBus(t)
	ch := collect(t, b, "observer")

	b.Post(WakeWordDetected{Keyword: "clara", Confidence: 0.8})

	first := nextRecord(t, ch)
	if first.Kind != KindWakeWordDetected {
		t.Fatalf("first kind = %q, want %q", first.Kind, KindWakeWordDetected)
	}
	second := nextRecord(t, ch)
	if second.Kind != KindStateChanged {
		t.Fatalf("second kind = %q, want %q", second.Kind, KindStateChanged)
	}
	sc, ok := second.Event.(StateChanged)
	if !ok {
		t.Fatalf("second event type = %T, want StateChanged", second.Event)
	}
	if sc.From != StateIdle || sc.To != StateListening {
		t.Fatalf("StateChanged = %s>%s, want idle>listening", sc.From, sc.To)
	}
	if b.VoiceState() != StateListening {
		t.Fatalf("VoiceState() = %q, want %q", b.VoiceState(), StateListening)
	}
}

func TestNoStateChangedWhenStateUnchanged(t *testing.T) {
	b := newTestBus(t)
	ch := collect(t, b, "observer")

	// Two consecutive wake words both derive Listening; only the first emits
	// a StateChanged.
	b.Post(WakeWordDetected{Keyword: "clara", Confidence: 0.8})
	b.Post(WakeWordDetected{Keyword: "clara", Confidence: 0.9})

	kinds := []Kind{
		nextRecord(t, ch).Kind,
		nextRecord(t, ch).Kind,
		nextRecord(t, ch).Kind,
	}
	want := []Kind{KindWakeWordDetected, KindStateChanged, KindWakeWordDetected}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
	select {
	case rec := <-ch:
		t.Fatalf("unexpected extra event %q", rec.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	b := newTestBus(t)
	b.Subscribe("bad", func(Record) {
		panic("handler bug")
	})
	ch := collect(t, b, "good")

	b.Post(STTStarted{SessionID: "s1"})
	rec := nextRecord(t, ch)
	if rec.Kind != KindSTTStarted {
		t.Fatalf("kind = %q, want %q", rec.Kind, KindSTTStarted)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus(t)
	ch := collect(t, b, "observer")
	b.Post(STTStarted{SessionID: "s1"})
	nextRecord(t, ch) // event
	nextRecord(t, ch) // state change

	b.Unsubscribe("observer")
	b.Post(STTStopped{SessionID: "s1"})
	select {
	case rec := <-ch:
		t.Fatalf("unexpected delivery after unsubscribe: %q", rec.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHistoryBounded(t *testing.T) {
	b := newTestBus(t)
	done := make(chan struct{}, 1)
	b.Subscribe("counter", func(rec Record) {
		if p, ok := rec.Event.(STTPartialResult); ok && p.Text == "last" {
			done <- struct{}{}
		}
	})

	for i := 0; i < 150; i++ {
		b.Post(STTPartialResult{SessionID: "s1", Text: fmt.Sprintf("p%d", i)})
		// Pace the posts so the bounded queue never saturates.
		if i%32 == 31 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	b.Post(STTPartialResult{SessionID: "s1", Text: "last"})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for final event")
	}

	h := b.History()
	if len(h) != 100 {
		t.Fatalf("history length = %d, want 100", len(h))
	}
	if h[len(h)-1].Key != (STTPartialResult{SessionID: "s1", Text: "last"}).Key() {
		t.Fatalf("history tail key = %q, want last partial", h[len(h)-1].Key)
	}
}

func TestSessionStateDerivation(t *testing.T) {
	b := newTestBus(t)
	ch := collect(t, b, "observer")

	b.Post(SessionStarted{SessionID: "s1"})
	nextRecord(t, ch)
	if b.SessionState() != SessionStateActive {
		t.Fatalf("SessionState = %q, want active", b.SessionState())
	}

	b.Post(SessionSuspended{SessionID: "s1"})
	nextRecord(t, ch)
	if b.SessionState() != SessionStateSuspended {
		t.Fatalf("SessionState = %q, want suspended", b.SessionState())
	}

	b.Post(SessionResumed{SessionID: "s1"})
	nextRecord(t, ch)
	if b.SessionState() != SessionStateInactive {
		t.Fatalf("SessionState = %q, want inactive after resume", b.SessionState())
	}
}

func TestEventKeysAreStable(t *testing.T) {
	a := STTFinalResult{SessionID: "s1", Text: "hello", Confidence: 0.8}
	b := STTFinalResult{SessionID: "s1", Text: "hello", Confidence: 0.9}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ for same identity: %q vs %q", a.Key(), b.Key())
	}
	c := STTFinalResult{SessionID: "s2", Text: "hello"}
	if a.Key() == c.Key() {
		t.Fatalf("keys collide across sessions: %q", a.Key())
	}
}
