package syncqueue

import (
	"encoding/json"
)

// Item is one client-side mutation awaiting delivery. Identity is (ID, Type);
// UpdatedAt is a logical timestamp and DeletedAt a tombstone marker.
type Item struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt int64           `json:"updated_at"`
	DeletedAt *int64          `json:"deleted_at,omitempty"`
}

// Resolve picks the winner of two versions of the same record. A tombstone
// dominates a plain update regardless of timestamps; otherwise the later
// UpdatedAt wins, with ties favoring the local (first) argument. The rule is
// the same whether merging queued items or local-vs-remote records.
func Resolve(local, remote Item) Item {
	if (local.DeletedAt != nil) != (remote.DeletedAt != nil) {
		if local.DeletedAt != nil {
			return local
		}
		return remote
	}
	if local.UpdatedAt >= remote.UpdatedAt {
		return local
	}
	return remote
}

// merge folds an incoming item into an already queued one with the same
// identity: the incoming payload is kept, the winning version stamps it.
func merge(existing, incoming Item) Item {
	winner := Resolve(existing, incoming)
	merged := incoming
	merged.UpdatedAt = winner.UpdatedAt
	merged.DeletedAt = winner.DeletedAt
	return merged
}
