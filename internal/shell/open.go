package shell

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fentz26/simshell/internal/config"
	"github.com/fentz26/simshell/internal/executor"
	"github.com/fentz26/simshell/internal/interp"
	"github.com/fentz26/simshell/internal/oracle"
	"github.com/fentz26/simshell/internal/store"
	"github.com/fentz26/simshell/internal/vars"
)

// Open builds a session and everything it depends on from cfg. The caller
// owns the returned session and must Close it.
func Open(cfg *config.Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cats, err := cfg.Categories()
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	delay := executor.NewDelayer(
		time.Duration(cfg.Sim.MinDelayMS)*time.Millisecond,
		time.Duration(cfg.Sim.MaxDelayMS)*time.Millisecond,
		vars.NewStore(st),
	)
	classOracle, gen := oracle.New(&cfg.Oracle, logger)

	reg := executor.NewRegistry()
	reg.RegisterDefaults(st, vars.NewStore(st), delay)

	d := interp.New(st, gen, delay, logger, interp.Config{
		DataDir:    cfg.Store.DataDir,
		AdminUsers: cfg.Admins(),
	})

	logger.Info("session opened",
		zap.String("user", cfg.Session.UserID),
		zap.String("store", st.Path()),
		zap.String("oracle", cfg.Oracle.Provider),
	)

	return New(Deps{
		Store:     st,
		Oracle:    classOracle,
		Interp:    d,
		Executors: reg,
		Logger:    logger,
	}, Options{
		UserID:      cfg.Session.UserID,
		Categories:  cats,
		OverrideAll: cfg.Session.OverrideAll,
	}), nil
}
