package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/example/hotel-call-scheduler/internal/callref"
	"github.com/example/hotel-call-scheduler/internal/config"
	"github.com/example/hotel-call-scheduler/internal/db"
	"github.com/example/hotel-call-scheduler/internal/dispatch"
	"github.com/example/hotel-call-scheduler/internal/gateway"
	"github.com/example/hotel-call-scheduler/internal/lock"
	"github.com/example/hotel-call-scheduler/internal/logging"
	"github.com/example/hotel-call-scheduler/internal/migrate"
	"github.com/example/hotel-call-scheduler/internal/notify"
	"github.com/example/hotel-call-scheduler/internal/pms"
	"github.com/example/hotel-call-scheduler/internal/reconcile"
	"github.com/example/hotel-call-scheduler/internal/scheduling"
	"github.com/example/hotel-call-scheduler/internal/store"
	"github.com/example/hotel-call-scheduler/internal/store/memory"
	"github.com/example/hotel-call-scheduler/internal/store/postgres"
	"github.com/example/hotel-call-scheduler/internal/trigger"
	"go.uber.org/zap"
)

const callRefMaxAge = 7 * 24 * time.Hour

// app holds everything a command needs once config is loaded.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	store  store.Store
	runner *trigger.Runner
	ping   trigger.Pinger

	closers []func()
}

type appOptions struct {
	migrate bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "callsched")
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory call store, records are lost on exit")
		a.store = memory.New()
	default:
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, d.Close)
		if err := d.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if opts.migrate {
			if _, err := migrate.Up(ctx, d, log); err != nil {
				a.Close()
				return nil, err
			}
		}
		a.store = postgres.NewStore(d)
		a.ping = d.Ping
	}

	guard, rdb, err := lock.Dial(ctx, cfg.RedisAddr, cfg.LockTTL, log)
	if err != nil {
		// overlap protection is best effort
		log.Warn("redis unavailable, running without operation locks", zap.Error(err))
	}
	if rdb != nil {
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	gw := gateway.New(cfg.Gateway, log)
	sink := notify.New(cfg.Notify, log)
	dopts := dispatch.Options{
		HotelName: cfg.HotelName,
		Region:    cfg.DefaultRegion,
		Location:  cfg.Location,
		Signer:    callref.NewSigner(cfg.CallRefHashKey, cfg.CallRefBlockKey, callRefMaxAge),
	}

	a.runner = trigger.NewRunner(
		scheduling.New(a.store, cfg.Location, cfg.Dispatch.MaxAttempts, log),
		dispatch.NewEngine(a.store, gw, sink, cfg.Dispatch, dopts, log),
		dispatch.NewWakeUps(a.store, gw, sink, cfg.WakeUp, dopts, log),
		reconcile.New(a.store, pms.New(cfg.PMS), cfg.DefaultRegion, log),
		guard,
		log,
	)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
