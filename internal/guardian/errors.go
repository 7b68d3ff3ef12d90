package guardian

import "errors"

var (
	ErrArityMismatch              = errors.New("previous owner hints and owners to remove differ in length")
	ErrHookTampered               = errors.New("wallet guard is not the liveness tracker")
	ErrThresholdDrifted           = errors.New("wallet threshold does not match required threshold")
	ErrStillActive                = errors.New("owner is still active")
	ErrRemovalFailed              = errors.New("owner removal failed")
	ErrFallbackSwapFailed         = errors.New("swap to fallback owner failed")
	ErrFloorBreached              = errors.New("owner count below minimum")
	ErrMinOwnersExceedsMembership = errors.New("minimum owners must be below current owner count")
	ErrInvalidConfig              = errors.New("invalid guardian config")
)

// Kind names the guardian error behind err, or "" if there is none.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrArityMismatch, "ArityMismatch"},
	{ErrHookTampered, "HookTampered"},
	{ErrThresholdDrifted, "ThresholdDrifted"},
	{ErrStillActive, "StillActive"},
	{ErrRemovalFailed, "RemovalFailed"},
	{ErrFallbackSwapFailed, "FallbackSwapFailed"},
	{ErrFloorBreached, "FloorBreached"},
	{ErrMinOwnersExceedsMembership, "MinOwnersExceedsMembership"},
	{ErrInvalidConfig, "InvalidConfig"},
}
