package safe

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// SentinelOwners is the head and tail marker of every owner list.
var SentinelOwners = common.HexToAddress("0x0000000000000000000000000000000000000001")

// OwnerList is an ordered set of owners stored as a sentinel-terminated
// singly-linked list keyed by address. Mutations name the predecessor of
// the member they touch and fail when that hint is stale.
type OwnerList struct {
	next  map[common.Address]common.Address
	count int
}

// NewOwnerList builds a list holding owners in the given order.
func NewOwnerList(owners []common.Address) (*OwnerList, error) {
	l := &OwnerList{next: make(map[common.Address]common.Address, len(owners)+1)}
	current := SentinelOwners
	for _, owner := range owners {
		if err := checkOwner(owner); err != nil {
			return nil, err
		}
		if l.Contains(owner) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOwner, owner)
		}
		l.next[current] = owner
		current = owner
		l.count++
	}
	l.next[current] = SentinelOwners
	return l, nil
}

func checkOwner(owner common.Address) error {
	if owner == (common.Address{}) || owner == SentinelOwners {
		return fmt.Errorf("%w: %s", ErrInvalidOwner, owner)
	}
	return nil
}

// Len returns the number of owners.
func (l *OwnerList) Len() int { return l.count }

// Contains reports whether owner is a member.
func (l *OwnerList) Contains(owner common.Address) bool {
	if owner == SentinelOwners {
		return false
	}
	_, ok := l.next[owner]
	return ok
}

// List returns the owners in list order.
func (l *OwnerList) List() []common.Address {
	out := make([]common.Address, 0, l.count)
	for cur := l.next[SentinelOwners]; cur != SentinelOwners; cur = l.next[cur] {
		out = append(out, cur)
	}
	return out
}

// Predecessor returns the entry immediately preceding owner, which is
// SentinelOwners for the first member.
func (l *OwnerList) Predecessor(owner common.Address) (common.Address, bool) {
	if !l.Contains(owner) {
		return common.Address{}, false
	}
	prev := SentinelOwners
	for cur := l.next[SentinelOwners]; cur != SentinelOwners; cur = l.next[cur] {
		if cur == owner {
			return prev, true
		}
		prev = cur
	}
	return common.Address{}, false
}

// Add inserts owner at the head of the list.
func (l *OwnerList) Add(owner common.Address) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if l.Contains(owner) {
		return fmt.Errorf("%w: %s", ErrDuplicateOwner, owner)
	}
	l.next[owner] = l.next[SentinelOwners]
	l.next[SentinelOwners] = owner
	l.count++
	return nil
}

// RemoveAfter unlinks owner, which must directly follow prev.
func (l *OwnerList) RemoveAfter(prev, owner common.Address) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if l.next[prev] != owner {
		return fmt.Errorf("%w: %s does not precede %s", ErrInvalidPrevOwner, prev, owner)
	}
	l.next[prev] = l.next[owner]
	delete(l.next, owner)
	l.count--
	return nil
}

// SwapAfter replaces oldOwner, which must directly follow prev, with
// newOwner at the same position.
func (l *OwnerList) SwapAfter(prev, oldOwner, newOwner common.Address) error {
	if err := checkOwner(newOwner); err != nil {
		return err
	}
	if l.Contains(newOwner) {
		return fmt.Errorf("%w: %s", ErrDuplicateOwner, newOwner)
	}
	if err := checkOwner(oldOwner); err != nil {
		return err
	}
	if l.next[prev] != oldOwner {
		return fmt.Errorf("%w: %s does not precede %s", ErrInvalidPrevOwner, prev, oldOwner)
	}
	l.next[newOwner] = l.next[oldOwner]
	l.next[prev] = newOwner
	delete(l.next, oldOwner)
	return nil
}

// Clone returns an independent copy of the list.
func (l *OwnerList) Clone() *OwnerList {
	next := make(map[common.Address]common.Address, len(l.next))
	for k, v := range l.next {
		next[k] = v
	}
	return &OwnerList{next: next, count: l.count}
}
