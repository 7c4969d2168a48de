package bridge

import (
	"strings"
	"testing"
	"time"
)

func TestMatchIntent(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"hello there", IntentGreeting},
		{"Hey Clara", IntentGreeting},
		{"good morning!", IntentGreeting},
		{"what time is it", IntentTime},
		{"do you know the time", IntentTime},
		{"what day is it today", IntentDate},
		{"help me out", IntentHelp},
		{"turn on the kitchen lights", IntentUnknown},
		{"", IntentUnknown},
	}
	for _, tc := range cases {
		got, conf := MatchIntent(tc.text)
		if got != tc.want {
			t.Fatalf("MatchIntent(%q) = %q, want %q", tc.text, got, tc.want)
		}
		if tc.want != IntentUnknown && conf <= 0 {
			t.Fatalf("MatchIntent(%q) confidence = %v, want > 0", tc.text, conf)
		}
	}
}

func TestLocalAnswerComputesTimeAndDate(t *testing.T) {
	now := time.Date(2025, time.March, 3, 15, 4, 0, 0, time.UTC)
	if got := localAnswer(IntentTime, now); !strings.Contains(got, "3:04 PM") {
		t.Fatalf("time answer = %q, want it to contain 3:04 PM", got)
	}
	if got := localAnswer(IntentDate, now); !strings.Contains(got, "Monday, March 3") {
		t.Fatalf("date answer = %q, want it to contain Monday, March 3", got)
	}
}

func TestCannedForAlwaysFromFixedSet(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := cannedFor(IntentGreeting)
		if got == "" || !isCannedResponse(IntentGreeting, got) {
			t.Fatalf("cannedFor(greeting) = %q, not in the fixed set", got)
		}
	}
	// Unrecognized intents fall back to the generic offline set.
	got := cannedFor(IntentTime)
	if !isCannedResponse(IntentUnknown, got) {
		t.Fatalf("cannedFor(time) = %q, want generic offline response", got)
	}
}
