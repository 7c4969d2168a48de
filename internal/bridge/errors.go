package bridge

import (
	"errors"
	"fmt"
)

// Failure taxonomy for backend round-trips. All of these are non-fatal and
// resolve to an offline fallback response; none escape ProcessText.
var (
	ErrInvalidURL            = errors.New("invalid backend url")
	ErrNoResponse            = errors.New("no response from backend")
	ErrInvalidResponseFormat = errors.New("invalid response format")
	ErrNetworkUnavailable    = errors.New("network unavailable")
)

// ServerError reports a non-2xx backend status.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("backend server error: status %d", e.Code)
}

func failureOutcome(err error) string {
	var se *ServerError
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrInvalidResponseFormat):
		return "invalid_response_format"
	case errors.Is(err, ErrNetworkUnavailable):
		return "network_unavailable"
	case errors.As(err, &se):
		return "server_error"
	case errors.Is(err, ErrNoResponse):
		return "no_response"
	default:
		return "no_response"
	}
}
