// Package watch periodically reports owners whose liveness has lapsed.
// It never removes anyone; removal is an explicit guardian call.
package watch

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Scanner lists owners whose liveness has lapsed.
type Scanner interface {
	Inactive() ([]common.Address, error)
}

// Watcher runs a Scanner on a fixed interval.
type Watcher struct {
	scanner  Scanner
	interval time.Duration
	log      zerolog.Logger

	// OnScan, if set, receives the result of every successful scan.
	OnScan func([]common.Address)
}

func New(scanner Scanner, interval time.Duration, logger zerolog.Logger) *Watcher {
	return &Watcher{
		scanner:  scanner,
		interval: interval,
		log:      logger.With().Str("component", "watch").Logger(),
	}
}

// ScanOnce runs one scan and logs its result.
func (w *Watcher) ScanOnce() ([]common.Address, error) {
	inactive, err := w.scanner.Inactive()
	if err != nil {
		w.log.Error().Err(err).Msg("inactivity scan failed")
		return nil, err
	}
	if len(inactive) > 0 {
		arr := zerolog.Arr()
		for _, o := range inactive {
			arr.Str(o.Hex())
		}
		w.log.Warn().Array("owners", arr).Int("count", len(inactive)).Msg("owners eligible for removal")
	} else {
		w.log.Debug().Msg("no inactive owners")
	}
	if w.OnScan != nil {
		w.OnScan(inactive)
	}
	return inactive, nil
}

// Run scans once at startup and then every interval until ctx is done.
// A non-positive interval disables the watcher. Scan errors are logged and
// do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.log.Info().Msg("inactivity watcher disabled")
		return nil
	}

	w.ScanOnce()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.ScanOnce()
		case <-ctx.Done():
			return nil
		}
	}
}
