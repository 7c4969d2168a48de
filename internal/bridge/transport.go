package bridge

import (
	"context"

	"github.com/dvanetti/clara/internal/protocol"
)

// Transport carries one chat round-trip to the backend.
type Transport interface {
	Send(ctx context.Context, req protocol.ChatRequest) (protocol.ChatResponse, error)
}
