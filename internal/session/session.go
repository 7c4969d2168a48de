package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionActive = errors.New("a session is already active")

// Session is one conversational turn, from wake (or manual trigger) to
// response completion, timeout, or error.
type Session struct {
	ID             string     `json:"session_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	EndReason      string     `json:"end_reason,omitempty"`
	RecognizedText string     `json:"recognized_text,omitempty"`
	ResponseText   string     `json:"response_text,omitempty"`
	Intent         string     `json:"intent,omitempty"`
	Confidence     float64    `json:"confidence,omitempty"`

	transcriptFinal bool
}

// Registry owns the single active session and a bounded diagnostics history.
// At most one session has EndedAt == nil at any time.
type Registry struct {
	mu           sync.Mutex
	active       *Session
	history      []*Session
	historyLimit int
}

func NewRegistry(historyLimit int) *Registry {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Registry{historyLimit: historyLimit}
}

// Begin opens a new session. It fails if one is already open.
func (r *Registry) Begin() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrSessionActive
	}
	s := &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	r.active = s
	return clone(s), nil
}

// Active returns a copy of the open session, or nil.
func (r *Registry) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return clone(r.active)
}

// ActiveID returns the open session's id, or "".
func (r *Registry) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.ID
}

// SetTranscript records recognized text. A final transcript commits the
// field; later partials for the same session are stale and ignored.
func (r *Registry) SetTranscript(sessionID, text string, confidence float64, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.active
	if s == nil || s.ID != sessionID {
		return
	}
	if s.transcriptFinal && !final {
		return
	}
	s.RecognizedText = text
	if final {
		s.transcriptFinal = true
		s.Confidence = confidence
	}
}

// SetIntent records the recognized intent if the session is still open.
func (r *Registry) SetIntent(sessionID, intent string, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.active
	if s == nil || s.ID != sessionID {
		return
	}
	if s.Intent != "" {
		return
	}
	s.Intent = intent
	if s.Confidence == 0 {
		s.Confidence = confidence
	}
}

// SetResponse records the generated response if the session is still open.
func (r *Registry) SetResponse(sessionID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.active
	if s == nil || s.ID != sessionID {
		return
	}
	if s.ResponseText != "" {
		return
	}
	s.ResponseText = text
}

// End finalizes the open session and moves it into history. Ending an already
// ended (or unknown) session is a no-op; ok reports whether a session closed.
func (r *Registry) End(sessionID, reason string) (ended *Session, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.active
	if s == nil || s.ID != sessionID {
		return nil, false
	}
	now := time.Now().UTC()
	s.EndedAt = &now
	s.EndReason = reason
	r.active = nil

	r.history = append(r.history, s)
	if len(r.history) > r.historyLimit {
		r.history = r.history[len(r.history)-r.historyLimit:]
	}
	return clone(s), true
}

// History returns ended sessions, oldest first.
func (r *Registry) History() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Session, 0, len(r.history))
	for _, s := range r.history {
		out = append(out, *clone(s))
	}
	return out
}

func clone(s *Session) *Session {
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
