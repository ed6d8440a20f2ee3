package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdem-engine/internal/bot"
	"github.com/lox/holdem-engine/internal/config"
	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/lox/holdem-engine/internal/scheduler"
	"github.com/lox/holdem-engine/internal/server"
	"github.com/lox/holdem-engine/internal/store"
	"github.com/lox/holdem-engine/internal/table"
)

// ServeCmd runs the table server described by the config file.
type ServeCmd struct {
	Addr string `help:"Listen address, overriding the config (host:port)"`
	Seed *int64 `help:"Deterministic shuffle seed, overriding the config"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cli.LogLevel != "" {
		cfg.Server.LogLevel = cli.LogLevel
	}
	if c.Seed != nil {
		cfg.Server.Seed = *c.Seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cli.Config, err)
	}

	logger, closeLog, err := setupLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	tableCfg, err := cfg.TableService()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	games, holes, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(quartz.NewReal(), logger)
	defer sched.Stop()

	srv := server.New(nil, logger)

	// The driver needs the service to act through, so it joins the listeners
	// after the service is built and before anything is notified.
	listeners := table.Notifiers{srv}
	opts := []table.Option{
		table.WithConfig(tableCfg),
		table.WithScheduler(sched),
		table.WithNotifier(&listeners),
		table.WithLogger(logger),
	}
	if seed := cfg.Server.Seed; seed != 0 {
		logger.Info("Using deterministic seed", "seed", seed)
		opts = append(opts, table.WithRand(randutil.New(seed)))
	}
	svc := table.NewService(games, holes, opts...)
	sched.SetHandler(svc)
	srv.SetTables(svc)

	driver := bot.NewDriver(svc, logger)
	listeners = append(listeners, driver)

	addr := cfg.Addr()
	if c.Addr != "" {
		addr = c.Addr
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := driver.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx, addr)
	})

	if err := openTables(ctx, cfg, svc, driver, logger); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	logger.Info("Holdem server ready", "addr", addr, "tables", len(cfg.Tables), "bots", len(cfg.Bots),
		"turn_timeout", tableCfg.TurnTimeout, "auto_start", tableCfg.AutoStart)
	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (store.GameStore, store.HoleCardStore, func(), error) {
	if cfg.Store.Backend != config.BackendRedis {
		logger.Info("Using in-memory store")
		return store.NewMemoryGameStore(), store.NewMemoryHoleCardStore(), func() {}, nil
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, nil, err
	}
	rdb, err := store.NewRedisClient(ctx, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("Using redis store", "addr", opts.Addr, "db", opts.DB)
	closer := func() {
		if err := rdb.Close(); err != nil {
			logger.Error("Failed to close redis client", "error", err)
		}
	}
	return store.NewRedisGameStore(rdb, opts), store.NewRedisHoleCardStore(rdb, opts), closer, nil
}

// openTables creates each configured table and seats its bots. Tables that
// already exist in a persistent store are resumed with fresh timers.
func openTables(ctx context.Context, cfg *config.Config, svc *table.Service, driver *bot.Driver, logger *log.Logger) error {
	botSeed := cfg.Server.Seed
	if botSeed == 0 {
		botSeed = randutil.Seed()
	}

	for _, tc := range cfg.Tables {
		meta := tc.Meta()
		_, err := svc.Create(ctx, tc.Name, meta)
		resumed := errors.Is(err, store.ErrExists)
		if err != nil && !resumed {
			return fmt.Errorf("table %s: %w", tc.Name, err)
		}

		for i, bc := range cfg.BotsFor(tc.Name) {
			strategy, err := bot.New(bc.Strategy, randutil.New(botSeed+int64(i)), logger)
			if err != nil {
				return fmt.Errorf("bot %s: %w", bc.Name, err)
			}
			driver.Add(tc.Name, bc.Name, strategy)

			buyIn := bc.BuyIn
			if buyIn == 0 {
				buyIn = meta.MaxBuyIn
			}
			_, err = svc.Sit(ctx, tc.Name, bc.Name, bc.Name, -1, buyIn)
			switch {
			case errors.Is(err, game.ErrAlreadySeated):
			case err != nil:
				return fmt.Errorf("seat bot %s at %s: %w", bc.Name, tc.Name, err)
			default:
				logger.Info("Bot seated", "table", tc.Name, "bot", bc.Name, "strategy", bc.Strategy, "buy_in", buyIn)
			}
		}

		// Timers do not survive a restart; re-arm them once the bots are
		// listening.
		if resumed {
			if _, err := svc.Restore(ctx, tc.Name); err != nil {
				return fmt.Errorf("restore table %s: %w", tc.Name, err)
			}
			logger.Info("Table resumed from store", "table", tc.Name)
		}
	}
	return nil
}
