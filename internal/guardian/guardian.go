// Package guardian removes owners whose liveness has lapsed from a wallet,
// keeping the wallet's threshold at the required ratio and collapsing
// ownership to a fallback identity rather than shrinking below the floor.
package guardian

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/lazypower/vigil/internal/liveness"
	"github.com/lazypower/vigil/internal/safe"
)

// Wallet is the wallet capability the guardian operates through.
type Wallet interface {
	safe.Reader
	Update(fn func(safe.Mutator) error) error
}

// Tracker is the liveness source consulted before removal.
type Tracker interface {
	Address() common.Address
	LastActive(id common.Address) (time.Time, error)
}

// Config is fixed for the guardian's lifetime.
type Config struct {
	// LivenessInterval is how long an owner must be inactive before it
	// can be removed.
	LivenessInterval time.Duration
	// MinOwners is the floor below which the owner set only shrinks by
	// collapsing to FallbackOwner.
	MinOwners     int
	FallbackOwner common.Address
}

type Option func(*Guardian)

func WithClock(c liveness.Clock) Option {
	return func(g *Guardian) { g.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Guardian) { g.log = l.With().Str("component", "guardian").Logger() }
}

// Guardian executes owner removals against a wallet.
type Guardian struct {
	wallet  Wallet
	tracker Tracker
	cfg     Config
	clock   liveness.Clock
	log     zerolog.Logger
}

// MaxOwners bounds the owner counts Threshold is asked about from outside
// the process.
const MaxOwners = 1 << 20

// Threshold is the signing threshold required for n owners: the smallest
// integer at or above 75% of n.
func Threshold(n int) int {
	return (3*n + 3) / 4
}

// New validates cfg against the wallet's current state and returns a
// Guardian. It refuses a wallet whose threshold does not already satisfy
// the ratio it will enforce.
func New(wallet Wallet, tracker Tracker, cfg Config, opts ...Option) (*Guardian, error) {
	if cfg.LivenessInterval <= 0 {
		return nil, fmt.Errorf("%w: liveness interval must be positive", ErrInvalidConfig)
	}
	if cfg.FallbackOwner == (common.Address{}) {
		return nil, fmt.Errorf("%w: fallback owner required", ErrInvalidConfig)
	}
	if cfg.MinOwners < 1 {
		return nil, fmt.Errorf("%w: min owners must be at least 1", ErrInvalidConfig)
	}

	count := len(wallet.GetOwners())
	if cfg.MinOwners >= count {
		return nil, fmt.Errorf("%w: min owners %d, wallet has %d", ErrMinOwnersExceedsMembership, cfg.MinOwners, count)
	}
	if got, want := wallet.GetThreshold(), Threshold(count); got != want {
		return nil, fmt.Errorf("%w: threshold %d, want %d for %d owners", ErrThresholdDrifted, got, want, count)
	}

	g := &Guardian{
		wallet:  wallet,
		tracker: tracker,
		cfg:     cfg,
		clock:   liveness.SystemClock{},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Guardian) Safe() common.Address            { return g.wallet.Address() }
func (g *Guardian) TrackerAddress() common.Address  { return g.tracker.Address() }
func (g *Guardian) LivenessInterval() time.Duration { return g.cfg.LivenessInterval }
func (g *Guardian) MinOwners() int                  { return g.cfg.MinOwners }
func (g *Guardian) FallbackOwner() common.Address   { return g.cfg.FallbackOwner }
func (g *Guardian) Threshold(n int) int             { return Threshold(n) }

// RemoveOwners removes every owner in owners, using prevOwners[i] as the
// predecessor of owners[i] at the moment it is removed. The batch is
// atomic: any failure leaves the wallet as it was.
func (g *Guardian) RemoveOwners(prevOwners, owners []common.Address) error {
	if len(prevOwners) != len(owners) {
		return fmt.Errorf("%w: %d hints, %d owners", ErrArityMismatch, len(prevOwners), len(owners))
	}

	err := g.wallet.Update(func(m safe.Mutator) error {
		if err := g.checkWallet(m); err != nil {
			return err
		}
		if err := g.checkInactive(owners); err != nil {
			return err
		}

		for i := range owners {
			remaining := len(m.GetOwners())
			if remaining == 1 {
				if err := m.SwapOwner(prevOwners[i], owners[i], g.cfg.FallbackOwner); err != nil {
					return fmt.Errorf("%w: %s: %w", ErrFallbackSwapFailed, owners[i], err)
				}
				if err := m.ChangeThreshold(1); err != nil {
					return fmt.Errorf("%w: %w", ErrFallbackSwapFailed, err)
				}
				continue
			}
			if err := m.RemoveOwner(prevOwners[i], owners[i], Threshold(remaining-1)); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrRemovalFailed, owners[i], err)
			}
		}

		return g.checkFloor(m.GetOwners())
	})
	if err != nil {
		g.log.Warn().Err(err).Int("owners", len(owners)).Msg("removal rejected")
		return err
	}

	g.log.Info().Int("removed", len(owners)).Msg("owners removed")
	return nil
}

func (g *Guardian) checkWallet(r safe.Reader) error {
	if guard := r.GetGuard(); guard != g.tracker.Address() {
		return fmt.Errorf("%w: guard %s, tracker %s", ErrHookTampered, guard, g.tracker.Address())
	}
	count := len(r.GetOwners())
	if got, want := r.GetThreshold(), Threshold(count); got != want {
		return fmt.Errorf("%w: threshold %d, want %d for %d owners", ErrThresholdDrifted, got, want, count)
	}
	return nil
}

func (g *Guardian) checkInactive(owners []common.Address) error {
	now := g.clock.Now()
	for _, o := range owners {
		active, err := g.isActive(o, now)
		if err != nil {
			return err
		}
		if active {
			return fmt.Errorf("%w: %s", ErrStillActive, o)
		}
	}
	return nil
}

func (g *Guardian) isActive(id common.Address, now time.Time) (bool, error) {
	last, err := g.tracker.LastActive(id)
	if err != nil {
		return false, err
	}
	return now.Sub(last) <= g.cfg.LivenessInterval, nil
}

// checkFloor accepts a final owner set below the floor only when it has
// collapsed to the fallback owner alone.
func (g *Guardian) checkFloor(final []common.Address) error {
	if len(final) >= g.cfg.MinOwners {
		return nil
	}
	if g.collapsed(final) {
		return nil
	}
	return fmt.Errorf("%w: %d owners left, minimum %d", ErrFloorBreached, len(final), g.cfg.MinOwners)
}
