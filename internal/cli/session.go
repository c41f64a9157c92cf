package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akrishnanDG/ct1-migrate/internal/logging"
	"github.com/akrishnanDG/ct1-migrate/internal/migrator"
	"github.com/akrishnanDG/ct1-migrate/internal/store"
	"github.com/akrishnanDG/ct1-migrate/pkg/config"
)

// session holds the collaborators of one command run
type session struct {
	cfg      *config.Config
	store    *store.Store
	migrator *migrator.Migrator
	logger   *slog.Logger
}

func openSession(cfg *config.Config) (*session, error) {
	logger := logging.Setup(cfg.Output.LogLevel, cfg.Output.LogFile)

	st, err := store.Open(cfg.Database.Path, store.Options{Transactions: cfg.Database.Transactions})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m, err := migrator.New(cfg, st, migrator.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &session{cfg: cfg, store: st, migrator: m, logger: logger}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// signalContext cancels the returned context on SIGINT or SIGTERM. A batch
// in flight stops at the next event boundary.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
