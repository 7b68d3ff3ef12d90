package safe

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Execution describes one collaborative transaction while the wallet runs
// its guard. Only the wallet can mint one, so a guard can trust that an
// Execution naming its wallet really came from that wallet's pathway.
type Execution struct {
	v          *view
	tx         Transaction
	nonce      uint64
	hash       common.Hash
	signatures []byte
}

// Wallet returns the address of the executing wallet, or the zero address
// for an Execution not minted by a wallet.
func (e *Execution) Wallet() common.Address {
	if e == nil || e.v == nil {
		return common.Address{}
	}
	return e.v.Address()
}

func (e *Execution) Transaction() Transaction { return e.tx }

// Nonce is the nonce the transaction was signed for.
func (e *Execution) Nonce() uint64 { return e.nonce }

func (e *Execution) Hash() common.Hash { return e.hash }

// Signatures returns a copy of the packed signatures that approved the
// transaction.
func (e *Execution) Signatures() []byte { return append([]byte(nil), e.signatures...) }

// Owners returns the current owners. Read during CheckAfterExecution it
// reflects the transaction's effect.
func (e *Execution) Owners() []common.Address { return e.v.GetOwners() }

func (e *Execution) Threshold() int { return e.v.GetThreshold() }

func (e *Execution) IsOwner(owner common.Address) bool { return e.v.IsOwner(owner) }

// ExecTransaction verifies signatures over tx at the current nonce, runs
// the guard around the transaction's action and commits the result. Any
// failure leaves the wallet untouched.
func (s *Safe) ExecTransaction(tx Transaction, signatures []byte) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.st.nonce
	hash := HashTransaction(s.address, tx, nonce)
	signers, err := RecoverSigners(hash, signatures)
	if err != nil {
		return hash, err
	}
	if len(signers) < s.st.threshold {
		return hash, fmt.Errorf("%w: %d signatures, threshold %d", ErrInvalidSignatures, len(signers), s.st.threshold)
	}
	for _, signer := range signers {
		if !s.st.owners.Contains(signer) {
			return hash, fmt.Errorf("%w: %s is not an owner", ErrInvalidSignatures, signer)
		}
	}

	snapshot := s.st.clone()
	s.st.nonce++
	exec := &Execution{
		v:          s.view(),
		tx:         tx,
		nonce:      nonce,
		hash:       hash,
		signatures: append([]byte(nil), signatures...),
	}

	if s.guard != nil {
		if err := s.guard.CheckTransaction(exec); err != nil {
			s.st = snapshot
			return hash, fmt.Errorf("%w: %w", ErrGuardRejected, err)
		}
	}

	if err := exec.v.apply(tx.Action); err != nil {
		s.st = snapshot
		return hash, fmt.Errorf("execute %s: %w", tx.Action.Kind, err)
	}

	if s.guard != nil {
		if err := s.guard.CheckAfterExecution(exec); err != nil {
			s.st = snapshot
			return hash, fmt.Errorf("%w: %w", ErrGuardRejected, err)
		}
	}

	s.log.Info().
		Str("tx", hash.Hex()).
		Uint64("nonce", nonce).
		Int("signers", len(signers)).
		Str("action", tx.Action.Kind.String()).
		Msg("transaction executed")
	return hash, nil
}
