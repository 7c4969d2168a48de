package bridge

import (
	"context"
	"time"

	"github.com/dvanetti/clara/internal/bus"
	"github.com/dvanetti/clara/internal/observability"
	"github.com/dvanetti/clara/internal/protocol"
)

// SourceType labels where a response came from.
type SourceType string

const (
	SourceOnline  SourceType = "online"
	SourceOffline SourceType = "offline"
)

// Response is the outcome of one processed transcript.
type Response struct {
	Text       string     `json:"text"`
	Intent     string     `json:"intent,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Source     SourceType `json:"source"`
}

// Responder converts a finalized transcript into a response.
type Responder interface {
	ProcessText(ctx context.Context, text, sessionID string) Response
}

// Bridge turns a transcript into a response, online or offline. It never
// calls the synthesizer: the only downstream signal is the single
// ResponseGenerated event posted per processed transcript.
type Bridge struct {
	transport Transport
	monitor   *Monitor
	events    *bus.Bus
	metrics   *observability.Metrics
	timeout   time.Duration
}

func New(transport Transport, monitor *Monitor, events *bus.Bus, metrics *observability.Metrics, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bridge{
		transport: transport,
		monitor:   monitor,
		events:    events,
		metrics:   metrics,
		timeout:   timeout,
	}
}

// ProcessText resolves a transcript to a response. Local pattern intents win
// outright; otherwise the backend is consulted within the network timeout,
// and any failure falls back to a canned offline response. The reachability
// monitor is never consulted as a gate: the request is attempted and the
// concrete outcome drives both the fallback and the monitor. Errors never
// propagate to the caller.
func (b *Bridge) ProcessText(ctx context.Context, text, sessionID string) Response {
	start := time.Now()
	defer func() { b.metrics.ObserveBridgeLatency(time.Since(start)) }()

	intent, confidence := MatchIntent(text)
	if intent != IntentUnknown {
		b.events.Post(bus.IntentRecognized{Intent: string(intent), Confidence: confidence})
		resp := Response{
			Text:       localAnswer(intent, time.Now()),
			Intent:     string(intent),
			Confidence: confidence,
			Source:     SourceOffline,
		}
		b.emit(sessionID, resp, "local_intent")
		return resp
	}

	if b.transport != nil {
		reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		chatResp, err := b.transport.Send(reqCtx, protocol.ChatRequest{
			Message:   text,
			SessionID: sessionID,
		})
		if err == nil {
			b.monitor.Observe(true)
			resp := Response{
				Text:       chatResp.Response,
				Intent:     chatResp.Intent,
				Confidence: chatResp.Confidence,
				Source:     SourceOnline,
			}
			if resp.Intent != "" {
				b.events.Post(bus.IntentRecognized{Intent: resp.Intent, Confidence: resp.Confidence})
			}
			b.emit(sessionID, resp, "ok")
			return resp
		}
		b.monitor.Observe(false)
		resp := b.offlineFallback(intent)
		b.emit(sessionID, resp, failureOutcome(err))
		return resp
	}

	resp := b.offlineFallback(intent)
	b.emit(sessionID, resp, failureOutcome(ErrNetworkUnavailable))
	return resp
}

func (b *Bridge) offlineFallback(intent Intent) Response {
	return Response{
		Text:   cannedFor(intent),
		Intent: string(intent),
		Source: SourceOffline,
	}
}

func (b *Bridge) emit(sessionID string, resp Response, outcome string) {
	b.metrics.BridgeRequests.WithLabelValues(string(resp.Source), outcome).Inc()
	b.events.Post(bus.ResponseGenerated{
		SessionID:  sessionID,
		Text:       resp.Text,
		SourceType: string(resp.Source),
	})
}
