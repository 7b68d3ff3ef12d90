package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/guardian"
	"github.com/lazypower/vigil/internal/liveness"
	"github.com/lazypower/vigil/internal/logging"
	"github.com/lazypower/vigil/internal/safe"
	"github.com/lazypower/vigil/internal/server"
	"github.com/lazypower/vigil/internal/store"
	"github.com/lazypower/vigil/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the wallet, liveness tracker and guardian behind the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := logging.New(logging.Options{Level: cfg.Log.Level, NoColor: cfg.Log.NoColor}, os.Stderr)

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	app, err := assemble(cfg, db, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.run(ctx, cfg.ListenAddr(), cfg.Liveness.ScanInterval.Std())
}

// app is the set of components serve hosts.
type app struct {
	wallet   *safe.Safe
	tracker  *liveness.Tracker
	guardian *guardian.Guardian
	server   *server.Server
	watcher  *watch.Watcher
	log      zerolog.Logger
}

// assemble builds the wallet from cfg, installs the tracker as its guard
// and wires the guardian and API over them.
func assemble(cfg config.Config, db *store.DB, log zerolog.Logger) (*app, error) {
	threshold := cfg.Safe.Threshold
	if threshold == 0 {
		threshold = guardian.Threshold(len(cfg.Safe.Owners))
	}
	wallet, err := safe.New(cfg.Safe.Address, cfg.Safe.Owners, threshold, log)
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	tracker, err := liveness.New(liveness.Config{
		Address: cfg.Liveness.GuardAddress,
		Wallet:  wallet.Address(),
		Records: db,
		Events:  db,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}
	wallet.SetGuard(tracker.Address(), tracker)
	log.Warn().
		Int("owners", len(cfg.Safe.Owners)).
		Int("threshold", threshold).
		Msg("owner set loaded from config; removals and owner changes do not survive a restart")
	if err := tracker.SeedOwners(wallet.GetOwners()); err != nil {
		return nil, err
	}

	g, err := guardian.New(wallet, tracker, guardian.Config{
		LivenessInterval: cfg.Liveness.Interval.Std(),
		MinOwners:        cfg.Guardian.MinOwners,
		FallbackOwner:    cfg.Guardian.FallbackOwner,
	}, guardian.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create guardian: %w", err)
	}

	srv := server.New(server.Deps{
		DB:       db,
		Wallet:   wallet,
		Tracker:  tracker,
		Guardian: g,
		Logger:   log,
	}, VersionString())

	return &app{
		wallet:   wallet,
		tracker:  tracker,
		guardian: g,
		server:   srv,
		watcher:  watch.New(g, cfg.Liveness.ScanInterval.Std(), log),
		log:      log,
	}, nil
}

func (a *app) run(ctx context.Context, addr string, scanInterval time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info().
		Str("addr", addr).
		Str("safe", a.wallet.Address().Hex()).
		Str("guard", a.tracker.Address().Hex()).
		Int("owners", len(a.wallet.GetOwners())).
		Int("threshold", a.wallet.GetThreshold()).
		Dur("scan_interval", scanInterval).
		Msg("vigil serving")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.watcher.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
