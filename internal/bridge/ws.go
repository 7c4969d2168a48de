package bridge

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dvanetti/clara/internal/protocol"
)

// WSTransport carries chat round-trips over a websocket: one dial, one
// request frame, one response frame per Send. The backend's /chat socket
// speaks the same JSON envelope as the HTTP endpoint.
type WSTransport struct {
	url     string
	dialer  *websocket.Dialer
	timeout time.Duration
}

func NewWSTransport(baseURL string, timeout time.Duration) (*WSTransport, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/chat"
	return &WSTransport{
		url: u.String(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		timeout: timeout,
	}, nil
}

func (t *WSTransport) Send(ctx context.Context, req protocol.ChatRequest) (protocol.ChatResponse, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(req); err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	_ = conn.SetReadDeadline(deadline)
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	resp, err := protocol.ParseChatResponse(raw)
	if err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}
	return resp, nil
}
