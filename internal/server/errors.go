package server

import (
	"errors"

	"github.com/lazypower/vigil/internal/guardian"
	"github.com/lazypower/vigil/internal/liveness"
	"github.com/lazypower/vigil/internal/safe"
)

var errorKinds = []struct {
	err  error
	name string
}{
	{liveness.ErrUnauthorizedRecorder, "UnauthorizedRecorder"},
	{liveness.ErrSignerMismatch, "SignerMismatch"},
	{liveness.ErrBadRefreshProof, "BadRefreshProof"},
	{safe.ErrGuardRejected, "GuardRejected"},
	{safe.ErrInvalidSignatures, "InvalidSignatures"},
	{safe.ErrInvalidPrevOwner, "InvalidPrevOwner"},
	{safe.ErrInvalidOwner, "InvalidOwner"},
	{safe.ErrDuplicateOwner, "DuplicateOwner"},
	{safe.ErrInvalidThreshold, "InvalidThreshold"},
	{safe.ErrUnknownAction, "UnknownAction"},
}

// errorKind names the domain error behind err. Guardian kinds win over
// the wallet errors they wrap.
func errorKind(err error) string {
	if k := guardian.Kind(err); k != "" {
		return k
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}
