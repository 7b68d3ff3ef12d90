// Package safetest provides wallets and owner keys for tests.
package safetest

import (
	"bytes"
	"crypto/ecdsa"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/vigil/internal/safe"
)

// WalletAddress is the address test wallets are created at.
var WalletAddress = common.HexToAddress("0x5afe00000000000000000000000000000000cafe")

// Owner is a test owner with its signing key.
type Owner struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// Owners generates n owners sorted by address.
func Owners(t testing.TB, n int) []Owner {
	t.Helper()
	out := make([]Owner, n)
	for i := range out {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		out[i] = Owner{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// Addresses returns the owners' addresses in order.
func Addresses(owners []Owner) []common.Address {
	out := make([]common.Address, len(owners))
	for i, o := range owners {
		out[i] = o.Address
	}
	return out
}

// NewWallet creates a wallet owned by owners with the given threshold.
func NewWallet(t testing.TB, owners []Owner, threshold int) *safe.Safe {
	t.Helper()
	w, err := safe.New(WalletAddress, Addresses(owners), threshold, zerolog.Nop())
	require.NoError(t, err)
	return w
}

// Sign approves tx at the wallet's current nonce with every signer.
func Sign(t testing.TB, w *safe.Safe, tx safe.Transaction, signers ...Owner) []byte {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, len(signers))
	for i, s := range signers {
		keys[i] = s.Key
	}
	sigs, err := safe.SignTransaction(safe.HashTransaction(w.Address(), tx, w.Nonce()), keys...)
	require.NoError(t, err)
	return sigs
}

// Exec signs tx with signers and executes it.
func Exec(t testing.TB, w *safe.Safe, tx safe.Transaction, signers ...Owner) (common.Hash, error) {
	t.Helper()
	return w.ExecTransaction(tx, Sign(t, w, tx, signers...))
}
