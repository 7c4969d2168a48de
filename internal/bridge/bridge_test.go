package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvanetti/clara/internal/bus"
	"github.com/dvanetti/clara/internal/observability"
	"github.com/dvanetti/clara/internal/protocol"
)

type fakeTransport struct {
	resp protocol.ChatResponse
	err  error
}

func (t *fakeTransport) Send(_ context.Context, _ protocol.ChatRequest) (protocol.ChatResponse, error) {
	return t.resp, t.err
}

func newTestBridge(t *testing.T, transport Transport, online bool) (*Bridge, <-chan bus.Record) {
	t.Helper()
	metrics := observability.NewMetrics(fmt.Sprintf("clara_test_bridge_%d", time.Now().UnixNano()))
	events := bus.New(metrics)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events.Start(ctx)

	responses := make(chan bus.Record, 16)
	events.Subscribe("test", func(rec bus.Record) {
		if rec.Kind == bus.KindResponseGenerated {
			responses <- rec
		}
	})

	monitor := NewMonitor(nil, time.Minute)
	monitor.Observe(online)
	return New(transport, monitor, events, metrics, time.Second), responses
}

func nextResponse(t *testing.T, ch <-chan bus.Record) bus.ResponseGenerated {
	t.Helper()
	select {
	case rec := <-ch:
		return rec.Event.(bus.ResponseGenerated)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response event")
		return bus.ResponseGenerated{}
	}
}

func assertNoMoreResponses(t *testing.T, ch <-chan bus.Record) {
	t.Helper()
	select {
	case rec := <-ch:
		t.Fatalf("unexpected extra response event: %+v", rec.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProcessTextOfflineGreeting(t *testing.T) {
	b, responses := newTestBridge(t, nil, false)

	resp := b.ProcessText(context.Background(), "hello", "s1")
	if resp.Source != SourceOffline {
		t.Fatalf("Source = %q, want offline", resp.Source)
	}
	if resp.Intent != string(IntentGreeting) {
		t.Fatalf("Intent = %q, want greeting", resp.Intent)
	}
	if resp.Text == "" || !isCannedResponse(IntentGreeting, resp.Text) {
		t.Fatalf("Text = %q, want a greeting from the fixed set", resp.Text)
	}

	evt := nextResponse(t, responses)
	if evt.SourceType != "offline" || evt.SessionID != "s1" {
		t.Fatalf("event = %+v, want offline for s1", evt)
	}
	assertNoMoreResponses(t, responses)
}

func TestProcessTextOnlineRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"it is sunny today","intent":"weather","confidence":0.8}`))
	}))
	defer srv.Close()

	transport, err := NewHTTPTransport(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}
	b, responses := newTestBridge(t, transport, true)

	resp := b.ProcessText(context.Background(), "how is the weather", "s1")
	if resp.Source != SourceOnline {
		t.Fatalf("Source = %q, want online", resp.Source)
	}
	if resp.Text != "it is sunny today" || resp.Intent != "weather" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	evt := nextResponse(t, responses)
	if evt.SourceType != "online" {
		t.Fatalf("event source = %q, want online", evt.SourceType)
	}
	assertNoMoreResponses(t, responses)
}

func TestProcessTextAttemptsBackendDespiteOfflineJudgment(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"back online"}`))
	}))
	defer srv.Close()

	transport, err := NewHTTPTransport(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}
	// A stale offline judgment must not suppress the real attempt.
	b, responses := newTestBridge(t, transport, false)

	resp := b.ProcessText(context.Background(), "unmatched backend question", "s1")
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("backend hits = %d, want 1", got)
	}
	if resp.Source != SourceOnline || resp.Text != "back online" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !b.monitor.Online() {
		t.Fatalf("monitor should observe the successful attempt")
	}

	evt := nextResponse(t, responses)
	if evt.SourceType != "online" {
		t.Fatalf("event source = %q, want online", evt.SourceType)
	}
	assertNoMoreResponses(t, responses)
}

func TestProcessTextServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	transport, err := NewHTTPTransport(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}
	b, responses := newTestBridge(t, transport, true)

	resp := b.ProcessText(context.Background(), "tell me a story", "s1")
	if resp.Source != SourceOffline {
		t.Fatalf("Source = %q, want offline after server error", resp.Source)
	}
	if resp.Text == "" {
		t.Fatalf("fallback text should not be empty")
	}
	if b.monitor.Online() {
		t.Fatalf("monitor should observe the failed attempt")
	}

	evt := nextResponse(t, responses)
	if evt.SourceType != "offline" {
		t.Fatalf("event source = %q, want offline", evt.SourceType)
	}
	assertNoMoreResponses(t, responses)
}

func TestProcessTextMalformedPayloadFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	transport, err := NewHTTPTransport(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}
	b, responses := newTestBridge(t, transport, true)

	resp := b.ProcessText(context.Background(), "anything unusual", "s1")
	if resp.Source != SourceOffline {
		t.Fatalf("Source = %q, want offline after malformed payload", resp.Source)
	}
	nextResponse(t, responses)
	assertNoMoreResponses(t, responses)
}

func TestProcessTextTransportErrorNeverPanics(t *testing.T) {
	b, responses := newTestBridge(t, &fakeTransport{err: ErrNoResponse}, true)
	resp := b.ProcessText(context.Background(), "unmatched input", "s1")
	if resp.Source != SourceOffline || resp.Text == "" {
		t.Fatalf("unexpected fallback response: %+v", resp)
	}
	nextResponse(t, responses)
	assertNoMoreResponses(t, responses)
}

func TestNewHTTPTransportRejectsBadURL(t *testing.T) {
	if _, err := NewHTTPTransport("://not-a-url", time.Second); err == nil {
		t.Fatalf("NewHTTPTransport should reject an invalid url")
	}
}
