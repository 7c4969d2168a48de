package session

import (
	"fmt"
	"testing"
)

func TestRegistrySingleActiveSession(t *testing.T) {
	r := NewRegistry(10)
	s, err := r.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	if _, err := r.Begin(); err != ErrSessionActive {
		t.Fatalf("second Begin() error = %v, want ErrSessionActive", err)
	}

	if _, ok := r.End(s.ID, "completed"); !ok {
		t.Fatalf("End() should close the open session")
	}
	if _, err := r.Begin(); err != nil {
		t.Fatalf("Begin() after End() error = %v", err)
	}
}

func TestRegistryEndIsIdempotent(t *testing.T) {
	r := NewRegistry(10)
	s, _ := r.Begin()

	ended, ok := r.End(s.ID, "timeout")
	if !ok {
		t.Fatalf("first End() should succeed")
	}
	if ended.EndedAt == nil || ended.EndReason != "timeout" {
		t.Fatalf("ended session not finalized: %+v", ended)
	}

	if _, ok := r.End(s.ID, "timeout"); ok {
		t.Fatalf("second End() should be a no-op")
	}
}

func TestRegistryStalePartialIgnoredAfterFinal(t *testing.T) {
	r := NewRegistry(10)
	s, _ := r.Begin()

	r.SetTranscript(s.ID, "turn on the", 0, false)
	r.SetTranscript(s.ID, "turn on the lights", 0.92, true)
	r.SetTranscript(s.ID, "turn on", 0, false) // stale partial, out of order

	got := r.Active()
	if got.RecognizedText != "turn on the lights" {
		t.Fatalf("RecognizedText = %q, want final transcript", got.RecognizedText)
	}
	if got.Confidence != 0.92 {
		t.Fatalf("Confidence = %v, want 0.92", got.Confidence)
	}
}

func TestRegistryMutationsIgnoredAfterEnd(t *testing.T) {
	r := NewRegistry(10)
	s, _ := r.Begin()
	r.End(s.ID, "error")

	r.SetTranscript(s.ID, "late", 0.5, true)
	r.SetResponse(s.ID, "late response")

	h := r.History()
	if len(h) != 1 {
		t.Fatalf("history length = %d, want 1", len(h))
	}
	if h[0].RecognizedText != "" || h[0].ResponseText != "" {
		t.Fatalf("ended session mutated: %+v", h[0])
	}
}

func TestRegistryHistoryEviction(t *testing.T) {
	r := NewRegistry(3)
	var last string
	for i := 0; i < 5; i++ {
		s, err := r.Begin()
		if err != nil {
			t.Fatalf("Begin() %d error = %v", i, err)
		}
		r.SetTranscript(s.ID, fmt.Sprintf("utterance %d", i), 1, true)
		r.End(s.ID, "completed")
		last = s.ID
	}

	h := r.History()
	if len(h) != 3 {
		t.Fatalf("history length = %d, want 3", len(h))
	}
	if h[0].RecognizedText != "utterance 2" {
		t.Fatalf("oldest retained = %q, want utterance 2", h[0].RecognizedText)
	}
	if h[2].ID != last {
		t.Fatalf("newest retained = %q, want %q", h[2].ID, last)
	}
}
