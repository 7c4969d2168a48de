package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvanetti/clara/internal/protocol"
)

// HTTPTransport posts chat requests to {baseURL}/chat.
type HTTPTransport struct {
	url    string
	client *http.Client
}

func NewHTTPTransport(baseURL string, timeout time.Duration) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/chat"
	return &HTTPTransport{
		url:    u.String(),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (t *HTTPTransport) Send(ctx context.Context, req protocol.ChatRequest) (protocol.ChatResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(httpReq)
	if err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return protocol.ChatResponse{}, &ServerError{Code: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	resp, err := protocol.ParseChatResponse(body)
	if err != nil {
		return protocol.ChatResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}
	return resp, nil
}
