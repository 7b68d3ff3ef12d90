package liveness

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type EventKind string

const (
	EventRefreshed            EventKind = "liveness_refreshed"
	EventParticipantsRecorded EventKind = "participants_recorded"
	EventOwnerAdded           EventKind = "owner_added"
	EventOwnerForgotten       EventKind = "owner_forgotten"
)

// Event is an audit record of a liveness write.
type Event struct {
	ID         uuid.UUID        `json:"id"`
	Kind       EventKind        `json:"kind"`
	TxHash     common.Hash      `json:"tx_hash,omitempty"`
	Identities []common.Address `json:"identities"`
	At         time.Time        `json:"at"`
}

// EventSink receives events after the write they describe is committed.
type EventSink interface {
	RecordEvent(e Event) error
}

func newEvent(kind EventKind, at time.Time, ids []common.Address) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		Identities: ids,
		At:         at,
	}
}
