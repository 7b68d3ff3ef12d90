package guardian

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/vigil/internal/safe"
)

// PlanRemoval projects removing owners, in order, over a snapshot of the
// wallet's current owner list and returns the predecessor hint each step
// will need. The wallet is not modified. Liveness is not checked.
func (g *Guardian) PlanRemoval(owners []common.Address) ([]common.Address, error) {
	list, err := safe.NewOwnerList(g.wallet.GetOwners())
	if err != nil {
		return nil, fmt.Errorf("snapshot owners: %w", err)
	}

	hints := make([]common.Address, 0, len(owners))
	for _, o := range owners {
		prev, ok := list.Predecessor(o)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an owner at this step", ErrRemovalFailed, o)
		}
		hints = append(hints, prev)

		if list.Len() == 1 {
			if err := list.SwapAfter(prev, o, g.cfg.FallbackOwner); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFallbackSwapFailed, err)
			}
			continue
		}
		if err := list.RemoveAfter(prev, o); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRemovalFailed, err)
		}
	}

	if err := g.checkFloor(list.List()); err != nil {
		return nil, err
	}
	return hints, nil
}

// Inactive returns the current owners whose liveness has lapsed, in list
// order. Once ownership has collapsed to the fallback owner nothing is
// removable and Inactive returns nil.
func (g *Guardian) Inactive() ([]common.Address, error) {
	owners := g.wallet.GetOwners()
	if g.collapsed(owners) {
		return nil, nil
	}
	now := g.clock.Now()
	var out []common.Address
	for _, o := range owners {
		active, err := g.isActive(o, now)
		if err != nil {
			return nil, err
		}
		if !active {
			out = append(out, o)
		}
	}
	return out, nil
}

// Removable reports whether RemoveOwners would accept id on liveness
// grounds: id is a current owner, its liveness has lapsed and ownership has
// not already collapsed to the fallback owner.
func (g *Guardian) Removable(id common.Address) (bool, error) {
	owners := g.wallet.GetOwners()
	if g.collapsed(owners) || !g.wallet.IsOwner(id) {
		return false, nil
	}
	active, err := g.isActive(id, g.clock.Now())
	if err != nil {
		return false, err
	}
	return !active, nil
}

func (g *Guardian) collapsed(owners []common.Address) bool {
	return len(owners) == 1 && owners[0] == g.cfg.FallbackOwner
}
