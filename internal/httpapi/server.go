package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/dvanetti/clara/internal/bus"
	"github.com/dvanetti/clara/internal/config"
	"github.com/dvanetti/clara/internal/observability"
	"github.com/dvanetti/clara/internal/session"
	"github.com/dvanetti/clara/internal/syncqueue"
	"github.com/dvanetti/clara/internal/voice"
)

type Server struct {
	cfg      config.Config
	coord    *voice.Coordinator
	events   *bus.Bus
	sessions *session.Registry
	sync     *syncqueue.Engine
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, coord *voice.Coordinator, events *bus.Bus, sessions *session.Registry, sync *syncqueue.Engine, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		coord:    coord,
		events:   events,
		sessions: sessions,
		sync:     sync,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up, so another website
				// cannot observe the user's voice event feed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/voice/flow/start", s.handleFlowStart)
	r.Post("/v1/voice/flow/stop", s.handleFlowStop)
	r.Post("/v1/voice/interrupt", s.handleInterrupt)
	r.Post("/v1/voice/appstate", s.handleAppState)
	r.Post("/v1/voice/text", s.handleSubmitText)
	r.Get("/v1/voice/state", s.handleVoiceState)
	r.Get("/v1/voice/sessions", s.handleSessions)
	r.Get("/v1/voice/events", s.handleEventHistory)
	r.Get("/v1/voice/events/ws", s.handleEventFeed)

	r.Post("/v1/sync/items", s.handleSyncEnqueue)
	r.Post("/v1/sync/flush", s.handleSyncFlush)
	r.Get("/v1/sync/status", s.handleSyncStatus)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"voice_state":   s.events.VoiceState(),
		"session_state": s.events.SessionState(),
	})
}

func (s *Server) handleFlowStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.coord.StartVoiceFlow(); err != nil {
		respondError(w, http.StatusInternalServerError, "flow_start_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "starting"})
}

func (s *Server) handleFlowStop(w http.ResponseWriter, _ *http.Request) {
	s.coord.StopVoiceFlow()
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "stopping"})
}

func (s *Server) handleInterrupt(w http.ResponseWriter, _ *http.Request) {
	s.coord.HandleVoiceInterruption()
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type appStateRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleAppState(w http.ResponseWriter, r *http.Request) {
	var req appStateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.coord.HandleAppStateChange(req.Active)
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type submitTextRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSubmitText(w http.ResponseWriter, r *http.Request) {
	var req submitTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "empty_text", "text is required")
		return
	}
	s.coord.SubmitText(req.Text)
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (s *Server) handleVoiceState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"voice_state":    s.events.VoiceState(),
		"session_state":  s.events.SessionState(),
		"active_session": s.sessions.Active(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"active":  s.sessions.Active(),
		"history": s.sessions.History(),
	})
}

func (s *Server) handleEventHistory(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"events": s.events.History()})
}

// handleEventFeed streams live bus events over a websocket. Writes stay on a
// single goroutine; a slow consumer loses events rather than stalling the bus.
func (s *Server) handleEventFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID := "feed-" + uuid.NewString()
	feed := make(chan bus.Record, 256)
	s.events.Subscribe(subID, func(rec bus.Record) {
		select {
		case feed <- rec:
		default:
			// Drop rather than block delivery to the other subscribers.
		}
	})
	defer s.events.Unsubscribe(subID)

	writerDone := make(chan struct{})
	ctx := r.Context()
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case rec := <-feed:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(rec); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	<-writerDone
}

func (s *Server) handleSyncEnqueue(w http.ResponseWriter, r *http.Request) {
	var item syncqueue.Item
	if err := decodeJSON(r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Type) == "" {
		respondError(w, http.StatusBadRequest, "invalid_item", "id and type are required")
		return
	}
	if err := s.sync.Enqueue(r.Context(), item); err != nil {
		respondError(w, http.StatusInternalServerError, "enqueue_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"queue_depth": s.sync.Len()})
}

func (s *Server) handleSyncFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.Flush(r.Context()); err != nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.sync.Len(),
	})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.sync.Snapshot())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
