package liveness

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxRefreshSkew bounds how far a signed refresh's issue time may be from
// the verifier's clock.
const MaxRefreshSkew = 2 * time.Minute

var ErrBadRefreshProof = errors.New("invalid refresh proof")

// RefreshDigest is the message an identity signs to refresh its liveness
// over an untrusted transport.
func RefreshDigest(wallet, identity common.Address, issuedAt int64) common.Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(issuedAt))
	return crypto.Keccak256Hash([]byte("vigil.refresh"), wallet.Bytes(), identity.Bytes(), ts[:])
}

// VerifyRefresh checks that signature is identity's signature over the
// refresh digest and that issuedAt (unix seconds) is close to now.
func VerifyRefresh(wallet, identity common.Address, issuedAt int64, signature []byte, now time.Time) error {
	skew := now.Sub(time.Unix(issuedAt, 0))
	if skew < -MaxRefreshSkew || skew > MaxRefreshSkew {
		return fmt.Errorf("%w: issued_at is %s from now", ErrBadRefreshProof, skew.Round(time.Second))
	}
	digest := RefreshDigest(wallet, identity, issuedAt)
	pub, err := crypto.SigToPub(digest[:], signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRefreshProof, err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != identity {
		return fmt.Errorf("%w: signed by %s", ErrBadRefreshProof, signer)
	}
	return nil
}
