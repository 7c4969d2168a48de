package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ChatRequest is the envelope posted to the backend chat endpoint.
type ChatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Action is a structured follow-up the backend may attach to a response.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChatResponse is the validated backend response shape. A payload that does
// not decode into it, or that lacks a response text, is a typed parse
// failure rather than a silent empty value.
type ChatResponse struct {
	Response   string         `json:"response"`
	Intent     string         `json:"intent,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Actions    []Action       `json:"actions,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

var ErrMalformedChatResponse = errors.New("malformed chat response")

// ParseChatResponse decodes and validates a backend chat payload.
func ParseChatResponse(raw []byte) (ChatResponse, error) {
	var resp ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ChatResponse{}, fmt.Errorf("%w: %v", ErrMalformedChatResponse, err)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return ChatResponse{}, fmt.Errorf("%w: missing response text", ErrMalformedChatResponse)
	}
	for _, a := range resp.Actions {
		if strings.TrimSpace(a.Type) == "" {
			return ChatResponse{}, fmt.Errorf("%w: action without type", ErrMalformedChatResponse)
		}
	}
	return resp, nil
}
