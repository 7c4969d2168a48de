package syncqueue

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
)

// Sender pushes a batch of queued items to the remote sync endpoint.
// A nil error means the whole batch was accepted.
type Sender interface {
	SendBatch(ctx context.Context, items []Item) error
}

type HTTPSender struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSender(endpoint string, timeout time.Duration) (*HTTPSender, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid sync endpoint %q", endpoint)
	}

	return &HTTPSender{
		endpoint: strings.TrimRight(endpoint, "/") + "/sync",
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPSender) SendBatch(ctx context.Context, items []Item) error {
	body, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode sync batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sync batch: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// StatusError reports a non-2xx sync endpoint status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sync endpoint returned status %d", e.Code)
}
