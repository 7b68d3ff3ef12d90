package store

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/lazypower/vigil/internal/liveness"
)

func TestRecordEventRoundTrip(t *testing.T) {
	db := openTestDB(t)
	e := liveness.Event{
		ID:         uuid.New(),
		Kind:       liveness.EventParticipantsRecorded,
		TxHash:     common.HexToHash("0xabcdef"),
		Identities: []common.Address{alice, bob},
		At:         time.UnixMilli(1_700_000_000_000),
	}
	if err := db.RecordEvent(e); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	events, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	got := events[0]
	if got.ID != e.ID || got.Kind != e.Kind || got.TxHash != e.TxHash || !got.At.Equal(e.At) {
		t.Errorf("event = %+v, want %+v", got, e)
	}
	if len(got.Identities) != 2 || got.Identities[0] != alice || got.Identities[1] != bob {
		t.Errorf("identities = %v", got.Identities)
	}
}

func TestRecentEventsOrderAndLimit(t *testing.T) {
	db := openTestDB(t)
	base := time.UnixMilli(1_000_000)
	for i := 0; i < 5; i++ {
		e := liveness.Event{
			ID:         uuid.New(),
			Kind:       liveness.EventRefreshed,
			Identities: []common.Address{alice},
			At:         base.Add(time.Duration(i) * time.Second),
		}
		if err := db.RecordEvent(e); err != nil {
			t.Fatalf("RecordEvent %d: %v", i, err)
		}
	}

	events, err := db.RecentEvents(3)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if want := base.Add(4 * time.Second); !events[0].At.Equal(want) {
		t.Errorf("newest At = %v, want %v", events[0].At, want)
	}
	if events[0].TxHash != (common.Hash{}) {
		t.Errorf("TxHash = %s, want zero", events[0].TxHash)
	}

	all, err := db.RecentEvents(0)
	if err != nil {
		t.Fatalf("RecentEvents(0): %v", err)
	}
	if len(all) != 5 {
		t.Errorf("RecentEvents(0) returned %d, want 5", len(all))
	}
}
