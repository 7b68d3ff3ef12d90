package safe

import "errors"

var (
	ErrInvalidOwner      = errors.New("invalid owner address")
	ErrDuplicateOwner    = errors.New("address is already an owner")
	ErrInvalidPrevOwner  = errors.New("invalid previous owner")
	ErrInvalidThreshold  = errors.New("invalid threshold")
	ErrInvalidSignatures = errors.New("invalid signatures")
	ErrGuardRejected     = errors.New("guard rejected transaction")
	ErrUnknownAction     = errors.New("unknown action")
)
