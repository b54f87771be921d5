// Package api wires the store, ledger, services and HTTP server into one
// process.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/netstate-gov/src/ai/core"
	_ "github.com/stake-plus/netstate-gov/src/ai/providers"
	"github.com/stake-plus/netstate-gov/src/analysis"
	"github.com/stake-plus/netstate-gov/src/api/webserver"
	"github.com/stake-plus/netstate-gov/src/config"
	"github.com/stake-plus/netstate-gov/src/data"
	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/jobs"
	"github.com/stake-plus/netstate-gov/src/ledger"
	"github.com/stake-plus/netstate-gov/src/metrics"
	"github.com/stake-plus/netstate-gov/src/notify"
	"github.com/stake-plus/netstate-gov/src/outbox"
	"github.com/stake-plus/netstate-gov/src/store"
	"github.com/stake-plus/netstate-gov/src/tally"
	"github.com/stake-plus/netstate-gov/src/voting"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Config config.Config
	Log    *zap.SugaredLogger

	DB     *gorm.DB
	Redis  *redis.Client
	Bus    events.Bus
	Nonces data.NonceStore
	Store  *store.Store

	// Chain is nil when no ledger endpoint is configured.
	Chain  ledger.Ledger
	Outbox *outbox.Worker
	Tally  *tally.Recomputer
	Voting *voting.Service

	// Analyzer is nil when no AI provider is configured.
	Analyzer *analysis.Analyzer
}

// Open connects every backend, migrates the schema and applies database
// settings on top of cfg.
func Open(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*App, error) {
	db, err := data.ConnectMySQL(cfg.DB.MySQLDSN, log)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	a := &App{Log: log, DB: db}

	if err := data.Migrate(db); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := data.LoadSettings(db); err != nil {
		log.Warnw("failed to load settings, using environment only", "error", err)
	}
	cfg.ApplySettings(data.GetSetting)
	a.Config = cfg

	if cfg.DB.RedisURL != "" {
		rdb, err := data.ConnectRedis(cfg.DB.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Redis = rdb
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.Bus = events.NewRedisBus(rdb, log)
		a.Nonces = data.NewRedisNonces(rdb)
	} else {
		log.Infow("no redis configured, running change feed in-process")
		a.Bus = events.NewLocalBus()
		a.Nonces = data.NewMemoryNonces()
	}

	a.Store = store.New(db, a.Bus, log)

	if cfg.Chain.Enabled() {
		client, err := ledger.Dial(ctx, cfg.Chain, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("ledger: %w", err)
		}
		if client.ReadOnly() {
			log.Warnw("no signer key configured, on-chain submissions are disabled")
		}
		a.Chain = client
		a.Outbox = outbox.NewWorker(a.Store.Outbox, client, log)
	} else {
		log.Warnw("no ledger configured, only off-chain proposals accept votes")
		a.Outbox = outbox.NewWorker(a.Store.Outbox, nil, log)
	}

	a.Tally = tally.NewRecomputer(a.Store.Proposals, a.Store.Votes, cfg.DB.TallyMaxRetries, log)
	a.Voting = voting.NewService(a.Store, a.Tally, a.Chain, a.Outbox, log)

	if cfg.AI.Enabled() {
		client, err := core.NewClient(core.FactoryConfig{
			Provider: cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			Model:    cfg.AI.Model,
			Endpoint: cfg.AI.Endpoint,
			Timeout:  cfg.AI.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Analyzer = analysis.New(client, a.Store, log)
		log.Infow("proposal analysis enabled", "provider", cfg.AI.Provider, "model", core.ResolveModelName(cfg.AI.Provider, cfg.AI.Model))
	}
	return a, nil
}

// Serve runs the scheduler, live metrics, notifications and the HTTP server
// until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	live, err := metrics.NewLive(a.Store, reg, a.Log)
	if err != nil {
		return err
	}
	go func() {
		if err := live.Run(ctx, a.Bus); err != nil {
			a.Log.Errorw("live metrics stopped", "error", err)
		}
	}()

	if a.Config.Discord.Enabled() {
		d, session, err := notify.NewDiscord(a.Config.Discord.Token, a.Config.Discord.ChannelID, a.Log)
		if err != nil {
			return err
		}
		defer session.Close()
		go func() {
			if err := d.Run(ctx, a.Bus); err != nil {
				a.Log.Errorw("discord notifications stopped", "error", err)
			}
		}()
	}

	sched := jobs.New(a.Log)
	var w *outbox.Worker
	if a.Chain != nil {
		w = a.Outbox
	}
	if err := jobs.Register(sched, a.Config.Jobs, w, a.Tally, a.Voting); err != nil {
		return fmt.Errorf("jobs: %w", err)
	}
	sched.Start(ctx)
	defer sched.Stop()

	router := webserver.New(ctx, a.Config, webserver.Deps{
		Store:    a.Store,
		Voting:   a.Voting,
		Nonces:   a.Nonces,
		Bus:      a.Bus,
		Live:     live,
		Gatherer: reg,
		Analyzer: a.Analyzer,
		Log:      a.Log,
	})
	httpSrv := &http.Server{
		Addr:              ":" + a.Config.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if a.Config.HTTP.TLSEnabled() {
			tlsReloader, rerr := webserver.NewTLSReloader(ctx, a.Config.HTTP.TLSCertFile, a.Config.HTTP.TLSKeyFile, a.Log)
			if rerr != nil {
				errCh <- fmt.Errorf("tls: %w", rerr)
				return
			}
			httpSrv.TLSConfig = tlsReloader.Config()
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.Log.Infow("netstate API listening", "port", a.Config.HTTP.Port, "tls", a.Config.HTTP.TLSEnabled())

	select {
	case <-ctx.Done():
	case err = <-errCh:
		a.Log.Errorw("http server failed", "error", err)
	}

	shutCtx, cancelShut := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShut()
	if serr := httpSrv.Shutdown(shutCtx); serr != nil {
		a.Log.Warnw("http shutdown", "error", serr)
	}
	return err
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
