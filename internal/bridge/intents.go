package bridge

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Intent is a locally recognizable utterance category.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentTime     Intent = "time"
	IntentDate     Intent = "date"
	IntentHelp     Intent = "help"
	IntentUnknown  Intent = "unknown"
)

var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentGreeting, []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}},
	{IntentTime, []string{"what time", "the time", "time is it", "current time"}},
	{IntentDate, []string{"what date", "the date", "what day", "today's date", "day is it"}},
	{IntentHelp, []string{"help", "what can you do", "how do you work"}},
}

// MatchIntent applies the cheap deterministic keyword rules. Unknown always
// matches with zero confidence.
func MatchIntent(text string) (Intent, float64) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return IntentUnknown, 0
	}
	for _, rule := range intentKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(normalized, kw) {
				return rule.intent, 0.9
			}
		}
	}
	return IntentUnknown, 0
}

var cannedResponses = map[Intent][]string{
	IntentGreeting: {
		"Hello! How can I help you?",
		"Hi there! What can I do for you?",
		"Hey! I'm listening.",
	},
	IntentHelp: {
		"You can ask me about the time, the date, or just say hello. When I'm online I can answer much more.",
		"Try asking me what time it is, or what today's date is.",
	},
	IntentUnknown: {
		"I can't reach the server right now, but I'm still here.",
		"I'm offline at the moment. Try again in a bit.",
		"Sorry, I couldn't get an answer for that while offline.",
	},
}

// localAnswer produces a response for intents answerable without the backend.
// Time and date are computed; the rest come from fixed canned sets.
func localAnswer(intent Intent, now time.Time) string {
	switch intent {
	case IntentTime:
		return fmt.Sprintf("It's %s.", now.Format("3:04 PM"))
	case IntentDate:
		return fmt.Sprintf("Today is %s.", now.Format("Monday, January 2"))
	default:
		return cannedFor(intent)
	}
}

// cannedFor picks a randomized response from the fixed offline set for the
// intent, falling back to the generic offline set.
func cannedFor(intent Intent) string {
	set, ok := cannedResponses[intent]
	if !ok || len(set) == 0 {
		set = cannedResponses[IntentUnknown]
	}
	return set[rand.Intn(len(set))]
}

// isCannedResponse reports whether text belongs to the intent's fixed set.
// Used by tests to pin the offline fallback contract.
func isCannedResponse(intent Intent, text string) bool {
	set, ok := cannedResponses[intent]
	if !ok {
		set = cannedResponses[IntentUnknown]
	}
	for _, s := range set {
		if s == text {
			return true
		}
	}
	return false
}
