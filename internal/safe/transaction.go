package safe

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// SignatureLength is the size of one packed [R || S || V] signature.
const SignatureLength = crypto.SignatureLength

var txDomain = []byte("vigil.safe.tx")

// ActionKind selects an owner-management call the wallet makes on itself.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionAddOwner
	ActionRemoveOwner
	ActionSwapOwner
	ActionChangeThreshold
)

var actionNames = map[ActionKind]string{
	ActionNone:            "none",
	ActionAddOwner:        "add_owner",
	ActionRemoveOwner:     "remove_owner",
	ActionSwapOwner:       "swap_owner",
	ActionChangeThreshold: "change_threshold",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

func (k ActionKind) MarshalText() ([]byte, error) {
	if _, ok := actionNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *ActionKind) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = ActionNone
		return nil
	}
	for kind, name := range actionNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, text)
}

// Action is an owner-management call carried by a transaction. Fields not
// used by Kind are left zero.
type Action struct {
	Kind      ActionKind     `json:"kind"`
	Prev      common.Address `json:"prev,omitempty"`
	Owner     common.Address `json:"owner,omitempty"`
	NewOwner  common.Address `json:"new_owner,omitempty"`
	Threshold uint64         `json:"threshold,omitempty"`
}

// Transaction is a collaborative wallet transaction.
type Transaction struct {
	To     common.Address `json:"to"`
	Value  uint64         `json:"value"`
	Data   hexutil.Bytes  `json:"data,omitempty"`
	Action Action         `json:"action"`
}

type txPayload struct {
	Wallet common.Address
	To     common.Address
	Value  uint64
	Data   []byte
	Action Action
	Nonce  uint64
}

// HashTransaction returns the digest owners sign to approve tx at nonce.
func HashTransaction(wallet common.Address, tx Transaction, nonce uint64) (h common.Hash) {
	sha := crypto.NewKeccakState()
	sha.Write(txDomain)
	err := rlp.Encode(sha, &txPayload{
		Wallet: wallet,
		To:     tx.To,
		Value:  tx.Value,
		Data:   tx.Data,
		Action: tx.Action,
		Nonce:  nonce,
	})
	if err != nil {
		// txPayload holds only addresses, unsigned integers and bytes, all of
		// which rlp encodes; the keccak writer never fails.
		panic(fmt.Sprintf("hash transaction: %v", err))
	}
	sha.Read(h[:])
	return h
}

// Sign produces one packed signature over hash.
func Sign(hash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// SignTransaction signs hash with every key and packs the signatures in
// ascending signer order, which is the order ExecTransaction requires.
func SignTransaction(hash common.Hash, keys ...*ecdsa.PrivateKey) ([]byte, error) {
	sorted := append([]*ecdsa.PrivateKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool {
		a := crypto.PubkeyToAddress(sorted[i].PublicKey)
		b := crypto.PubkeyToAddress(sorted[j].PublicKey)
		return bytes.Compare(a[:], b[:]) < 0
	})

	out := make([]byte, 0, len(sorted)*SignatureLength)
	for _, key := range sorted {
		sig, err := Sign(hash, key)
		if err != nil {
			return nil, err
		}
		out = append(out, sig...)
	}
	return out, nil
}

// RecoverSigners recovers the address behind every packed signature.
// Signers must appear in strictly ascending order, so a signature cannot
// be counted twice.
func RecoverSigners(hash common.Hash, signatures []byte) ([]common.Address, error) {
	if len(signatures) == 0 || len(signatures)%SignatureLength != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignatures, len(signatures))
	}

	n := len(signatures) / SignatureLength
	signers := make([]common.Address, 0, n)
	var last common.Address
	for i := 0; i < n; i++ {
		sig := signatures[i*SignatureLength : (i+1)*SignatureLength]
		pub, err := crypto.SigToPub(hash[:], sig)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %d: %v", ErrInvalidSignatures, i, err)
		}
		signer := crypto.PubkeyToAddress(*pub)
		if i > 0 && bytes.Compare(signer[:], last[:]) <= 0 {
			return nil, fmt.Errorf("%w: signers not in ascending order", ErrInvalidSignatures)
		}
		signers = append(signers, signer)
		last = signer
	}
	return signers, nil
}
