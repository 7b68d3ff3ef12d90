// Package liveness records when each wallet owner last proved activity,
// either by refreshing directly or by co-signing an executed transaction.
package liveness

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/lazypower/vigil/internal/safe"
)

var (
	// ErrUnauthorizedRecorder rejects guard hooks not driven by the
	// configured wallet's execution pathway.
	ErrUnauthorizedRecorder = errors.New("unauthorized recorder")
	// ErrSignerMismatch rejects a signer set that does not match what the
	// wallet's own validation would accept for the transaction.
	ErrSignerMismatch = errors.New("signer set does not match transaction")
)

// Config wires a Tracker.
type Config struct {
	// Address is the identity the wallet installs as its guard.
	Address common.Address
	// Wallet is the only wallet whose executions may stamp liveness.
	Wallet  common.Address
	Records Records
	Events  EventSink
	Clock   Clock
	Logger  zerolog.Logger
}

// Tracker is the liveness guard. It implements safe.Guard.
type Tracker struct {
	address common.Address
	wallet  common.Address
	records Records
	events  EventSink
	clock   Clock
	log     zerolog.Logger

	mu      sync.Mutex
	pending *pendingExecution
}

type pendingExecution struct {
	hash         common.Hash
	signers      []common.Address
	ownersBefore []common.Address
}

var _ safe.Guard = (*Tracker)(nil)

// New creates a Tracker. A zero Address is derived from the wallet.
func New(cfg Config) (*Tracker, error) {
	if cfg.Wallet == (common.Address{}) {
		return nil, fmt.Errorf("tracker: wallet address required")
	}
	if cfg.Records == nil {
		return nil, fmt.Errorf("tracker: records required")
	}
	if cfg.Address == (common.Address{}) {
		cfg.Address = DeriveAddress(cfg.Wallet)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	return &Tracker{
		address: cfg.Address,
		wallet:  cfg.Wallet,
		records: cfg.Records,
		events:  cfg.Events,
		clock:   cfg.Clock,
		log:     cfg.Logger.With().Str("component", "liveness").Logger(),
	}, nil
}

// DeriveAddress returns the default tracker identity for a wallet.
func DeriveAddress(wallet common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("vigil.liveness"), wallet.Bytes())[12:])
}

func (t *Tracker) Address() common.Address { return t.address }

func (t *Tracker) Wallet() common.Address { return t.wallet }

// LastActive returns when id last proved activity, or the zero time.
func (t *Tracker) LastActive(id common.Address) (time.Time, error) {
	last, err := t.records.LastActive(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("last active %s: %w", id, err)
	}
	return last, nil
}

// SeedOwners stamps every owner that has no record yet with the current
// time, giving the initial owner set a full grace period.
func (t *Tracker) SeedOwners(owners []common.Address) error {
	var fresh []common.Address
	for _, o := range owners {
		last, err := t.LastActive(o)
		if err != nil {
			return err
		}
		if last.IsZero() {
			fresh = append(fresh, o)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	now := t.clock.Now()
	if err := t.records.Record(Batch{Touch: fresh, At: now}); err != nil {
		return fmt.Errorf("seed owners: %w", err)
	}
	t.log.Info().Int("owners", len(fresh)).Msg("seeded owner liveness")
	return nil
}

// RefreshSelf records that caller is alive. Anyone may call it; only
// owners' records matter to removal.
func (t *Tracker) RefreshSelf(caller common.Address) error {
	if caller == (common.Address{}) {
		return fmt.Errorf("refresh: zero caller")
	}
	now := t.clock.Now()
	if err := t.records.Record(Batch{Touch: []common.Address{caller}, At: now}); err != nil {
		return fmt.Errorf("refresh %s: %w", caller, err)
	}
	t.emit(newEvent(EventRefreshed, now, []common.Address{caller}))
	t.log.Debug().Str("identity", caller.Hex()).Msg("liveness refreshed")
	return nil
}

// CheckTransaction runs before the wallet applies a transaction. It
// re-derives the signer set from the raw signatures and holds it until
// the transaction completes.
func (t *Tracker) CheckTransaction(exec *safe.Execution) error {
	if exec.Wallet() != t.wallet {
		return fmt.Errorf("%w: execution from %s", ErrUnauthorizedRecorder, exec.Wallet())
	}

	hash := safe.HashTransaction(exec.Wallet(), exec.Transaction(), exec.Nonce())
	if hash != exec.Hash() {
		return fmt.Errorf("%w: hash %s, wallet reported %s", ErrSignerMismatch, hash, exec.Hash())
	}
	signers, err := safe.RecoverSigners(hash, exec.Signatures())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignerMismatch, err)
	}
	if len(signers) < exec.Threshold() {
		return fmt.Errorf("%w: %d signers below threshold %d", ErrSignerMismatch, len(signers), exec.Threshold())
	}
	for _, s := range signers {
		if !exec.IsOwner(s) {
			return fmt.Errorf("%w: %s is not an owner", ErrSignerMismatch, s)
		}
	}

	t.mu.Lock()
	t.pending = &pendingExecution{hash: hash, signers: signers, ownersBefore: exec.Owners()}
	t.mu.Unlock()
	return nil
}

// CheckAfterExecution commits the signers held by CheckTransaction, stamps
// owners the transaction added and forgets owners it removed, all in one
// write.
func (t *Tracker) CheckAfterExecution(exec *safe.Execution) error {
	if exec.Wallet() != t.wallet {
		return fmt.Errorf("%w: execution from %s", ErrUnauthorizedRecorder, exec.Wallet())
	}

	t.mu.Lock()
	p := t.pending
	t.pending = nil
	t.mu.Unlock()
	if p == nil || p.hash != exec.Hash() {
		return fmt.Errorf("%w: no checked transaction %s", ErrUnauthorizedRecorder, exec.Hash())
	}

	after := exec.Owners()
	added := difference(after, p.ownersBefore)
	removed := difference(p.ownersBefore, after)

	touch := append(difference(p.signers, removed), added...)
	now := t.clock.Now()
	if err := t.records.Record(Batch{Touch: touch, Forget: removed, At: now}); err != nil {
		return fmt.Errorf("record participants: %w", err)
	}

	e := newEvent(EventParticipantsRecorded, now, p.signers)
	e.TxHash = p.hash
	t.emit(e)
	if len(added) > 0 {
		e := newEvent(EventOwnerAdded, now, added)
		e.TxHash = p.hash
		t.emit(e)
	}
	if len(removed) > 0 {
		e := newEvent(EventOwnerForgotten, now, removed)
		e.TxHash = p.hash
		t.emit(e)
	}

	t.log.Info().
		Str("tx", p.hash.Hex()).
		Int("signers", len(p.signers)).
		Int("added", len(added)).
		Int("removed", len(removed)).
		Msg("participants recorded")
	return nil
}

func (t *Tracker) emit(e Event) {
	if t.events == nil {
		return
	}
	if err := t.events.RecordEvent(e); err != nil {
		t.log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("event not recorded")
	}
}

// difference returns the members of a not in b, in a's order.
func difference(a, b []common.Address) []common.Address {
	skip := make(map[common.Address]bool, len(b))
	for _, x := range b {
		skip[x] = true
	}
	var out []common.Address
	for _, x := range a {
		if !skip[x] {
			out = append(out, x)
		}
	}
	return out
}
