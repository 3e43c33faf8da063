package cli

import (
	"context"
	"fmt"

	"github.com/peter-kozarec/declinefit/internal/config"
	"github.com/peter-kozarec/declinefit/internal/dbg"
	"github.com/peter-kozarec/declinefit/pkg/data/duckdb"
	"github.com/peter-kozarec/declinefit/pkg/utility"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the dependencies shared by every command. It is populated by
// the root command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *duckdb.Store
	runID  utility.RunID
}

func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := dbg.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.runID = utility.NewRunID()
	return nil
}

// openStore connects to the configured DuckDB database. It returns nil when
// persistence is disabled.
func (a *app) openStore(ctx context.Context) (*duckdb.Store, error) {
	if a.cfg.Store.DSN == "" {
		return nil, nil
	}
	if a.store != nil {
		return a.store, nil
	}
	store, err := duckdb.Open(ctx, a.cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.store = store
	a.logger.Info("store opened", zap.String("dsn", a.cfg.Store.DSN), zap.Stringer("run_id", a.runID))
	return store, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("error closing store", zap.Error(err))
		}
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
