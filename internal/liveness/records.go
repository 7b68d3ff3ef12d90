package liveness

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Batch is one atomic change to liveness records. Touched identities move
// forward to At; a record never moves backwards. Forgotten identities lose
// their record.
type Batch struct {
	Touch  []common.Address
	Forget []common.Address
	At     time.Time
}

// Records stores the last-active time of every identity. A missing record
// reads as the zero time.
type Records interface {
	LastActive(id common.Address) (time.Time, error)
	Record(b Batch) error
}

// MemoryRecords is a Records kept in a map.
type MemoryRecords struct {
	mu   sync.RWMutex
	last map[common.Address]time.Time
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{last: make(map[common.Address]time.Time)}
}

func (m *MemoryRecords) LastActive(id common.Address) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last[id], nil
}

func (m *MemoryRecords) Record(b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range b.Touch {
		if b.At.After(m.last[id]) {
			m.last[id] = b.At
		}
	}
	for _, id := range b.Forget {
		delete(m.last, id)
	}
	return nil
}
