// Package safe is an in-process multi-owner wallet: an ordered owner set,
// a signing threshold, a guard slot and a collaborative execution pathway
// that runs the installed guard before and after every transaction.
package safe

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Reader exposes the wallet state a policy needs to inspect.
type Reader interface {
	Address() common.Address
	GetOwners() []common.Address
	GetThreshold() int
	IsOwner(owner common.Address) bool
	GetGuard() common.Address
}

// Mutator adds the owner-management primitives.
type Mutator interface {
	Reader
	RemoveOwner(prev, owner common.Address, threshold int) error
	SwapOwner(prev, oldOwner, newOwner common.Address) error
	ChangeThreshold(threshold int) error
}

// Guard is invoked around every collaborative transaction. An error from
// either hook reverts the whole transaction.
type Guard interface {
	CheckTransaction(exec *Execution) error
	CheckAfterExecution(exec *Execution) error
}

type state struct {
	owners    *OwnerList
	threshold int
	nonce     uint64
}

func (st *state) clone() *state {
	return &state{owners: st.owners.Clone(), threshold: st.threshold, nonce: st.nonce}
}

// Safe is a multi-owner wallet. All methods are safe for concurrent use
// and each call is serialized against every other.
type Safe struct {
	mu        sync.Mutex
	address   common.Address
	st        *state
	guardAddr common.Address
	guard     Guard
	log       zerolog.Logger
}

// New sets up a wallet at address with the given owners and threshold.
func New(address common.Address, owners []common.Address, threshold int, logger zerolog.Logger) (*Safe, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("safe address required")
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("%w: no owners", ErrInvalidOwner)
	}
	for _, o := range owners {
		if o == address {
			return nil, fmt.Errorf("%w: wallet cannot own itself", ErrInvalidOwner)
		}
	}
	list, err := NewOwnerList(owners)
	if err != nil {
		return nil, err
	}
	if threshold < 1 || threshold > list.Len() {
		return nil, fmt.Errorf("%w: %d of %d owners", ErrInvalidThreshold, threshold, list.Len())
	}
	return &Safe{
		address: address,
		st:      &state{owners: list, threshold: threshold},
		log:     logger.With().Str("component", "safe").Str("safe", address.Hex()).Logger(),
	}, nil
}

// Address returns the wallet's own identity.
func (s *Safe) Address() common.Address { return s.address }

func (s *Safe) GetOwners() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetOwners()
}

func (s *Safe) GetThreshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.threshold
}

func (s *Safe) IsOwner(owner common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.owners.Contains(owner)
}

// GetGuard returns the address of the installed guard, or the zero
// address when none is installed.
func (s *Safe) GetGuard() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guardAddr
}

// Nonce returns the nonce the next transaction must be signed for.
func (s *Safe) Nonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.nonce
}

// SetGuard installs guard under addr. A zero addr removes the guard.
func (s *Safe) SetGuard(addr common.Address, guard Guard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr == (common.Address{}) {
		guard = nil
	}
	s.guardAddr = addr
	s.guard = guard
	s.log.Info().Str("guard", addr.Hex()).Msg("guard changed")
}

func (s *Safe) RemoveOwner(prev, owner common.Address, threshold int) error {
	return s.Update(func(m Mutator) error { return m.RemoveOwner(prev, owner, threshold) })
}

func (s *Safe) SwapOwner(prev, oldOwner, newOwner common.Address) error {
	return s.Update(func(m Mutator) error { return m.SwapOwner(prev, oldOwner, newOwner) })
}

func (s *Safe) AddOwner(owner common.Address, threshold int) error {
	return s.Update(func(m Mutator) error { return m.(*view).AddOwner(owner, threshold) })
}

func (s *Safe) ChangeThreshold(threshold int) error {
	return s.Update(func(m Mutator) error { return m.ChangeThreshold(threshold) })
}

// Update runs fn with exclusive access to the wallet. If fn returns an
// error every mutation it made is rolled back.
func (s *Safe) Update(fn func(Mutator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.view()); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Safe) view() *view { return &view{safe: s, st: s.st} }

// view operates on a state without locking. It is only handed out while
// the wallet lock is held.
type view struct {
	safe *Safe
	st   *state
}

func (v *view) Address() common.Address     { return v.safe.address }
func (v *view) GetOwners() []common.Address { return v.st.owners.List() }
func (v *view) GetThreshold() int           { return v.st.threshold }
func (v *view) GetGuard() common.Address    { return v.safe.guardAddr }

func (v *view) IsOwner(owner common.Address) bool { return v.st.owners.Contains(owner) }

func (v *view) AddOwner(owner common.Address, threshold int) error {
	if owner == v.safe.address {
		return fmt.Errorf("%w: wallet cannot own itself", ErrInvalidOwner)
	}
	if err := v.st.owners.Add(owner); err != nil {
		return err
	}
	return v.ChangeThreshold(threshold)
}

func (v *view) RemoveOwner(prev, owner common.Address, threshold int) error {
	if v.st.owners.Len()-1 < threshold {
		return fmt.Errorf("%w: %d exceeds %d remaining owners", ErrInvalidThreshold, threshold, v.st.owners.Len()-1)
	}
	if err := v.st.owners.RemoveAfter(prev, owner); err != nil {
		return err
	}
	return v.ChangeThreshold(threshold)
}

func (v *view) SwapOwner(prev, oldOwner, newOwner common.Address) error {
	if newOwner == v.safe.address {
		return fmt.Errorf("%w: wallet cannot own itself", ErrInvalidOwner)
	}
	return v.st.owners.SwapAfter(prev, oldOwner, newOwner)
}

func (v *view) ChangeThreshold(threshold int) error {
	if threshold < 1 || threshold > v.st.owners.Len() {
		return fmt.Errorf("%w: %d of %d owners", ErrInvalidThreshold, threshold, v.st.owners.Len())
	}
	v.st.threshold = threshold
	return nil
}

func (v *view) apply(a Action) error {
	switch a.Kind {
	case ActionNone:
		return nil
	case ActionAddOwner:
		return v.AddOwner(a.Owner, int(a.Threshold))
	case ActionRemoveOwner:
		return v.RemoveOwner(a.Prev, a.Owner, int(a.Threshold))
	case ActionSwapOwner:
		return v.SwapOwner(a.Prev, a.Owner, a.NewOwner)
	case ActionChangeThreshold:
		return v.ChangeThreshold(int(a.Threshold))
	default:
		return fmt.Errorf("%w: %d", ErrUnknownAction, uint8(a.Kind))
	}
}
