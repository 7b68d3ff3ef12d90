package server

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lazypower/vigil/internal/liveness"
	"github.com/lazypower/vigil/internal/safe"
)

// Request and response bodies of the HTTP API.

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type SafeResponse struct {
	Address   common.Address   `json:"address"`
	Owners    []common.Address `json:"owners"`
	Threshold int              `json:"threshold"`
	Guard     common.Address   `json:"guard"`
	Nonce     uint64           `json:"nonce"`
}

type LivenessResponse struct {
	Address common.Address `json:"address"`
	// LastActive is nil when the identity has no record.
	LastActive *time.Time `json:"last_active"`
	IsOwner    bool       `json:"is_owner"`
	// Removable reports whether the guardian would accept removing the
	// identity now, liveness-wise.
	Removable bool `json:"removable"`
}

// RefreshRequest proves control of Address. Signature is Address's
// signature over liveness.RefreshDigest(safe, Address, IssuedAt).
type RefreshRequest struct {
	Address   common.Address `json:"address"`
	IssuedAt  int64          `json:"issued_at"`
	Signature hexutil.Bytes  `json:"signature"`
}

type TransactionRequest struct {
	safe.Transaction
	Signatures hexutil.Bytes `json:"signatures"`
}

type TransactionResponse struct {
	Hash  common.Hash `json:"hash"`
	Nonce uint64      `json:"nonce"`
}

type GuardianResponse struct {
	Safe             common.Address `json:"safe"`
	Tracker          common.Address `json:"tracker"`
	LivenessInterval string         `json:"liveness_interval"`
	LivenessSeconds  int64          `json:"liveness_interval_seconds"`
	MinOwners        int            `json:"min_owners"`
	FallbackOwner    common.Address `json:"fallback_owner"`
}

type ThresholdResponse struct {
	Owners    int `json:"owners"`
	Threshold int `json:"threshold"`
}

type OwnersResponse struct {
	Owners []common.Address `json:"owners"`
}

type PlanRequest struct {
	Owners []common.Address `json:"owners"`
}

type PlanResponse struct {
	PreviousOwners []common.Address `json:"previous_owners"`
}

type RemoveRequest struct {
	PreviousOwners []common.Address `json:"previous_owners"`
	Owners         []common.Address `json:"owners"`
}

type RemoveResponse struct {
	Owners    []common.Address `json:"owners"`
	Threshold int              `json:"threshold"`
}

type EventsResponse struct {
	Events []liveness.Event `json:"events"`
}
