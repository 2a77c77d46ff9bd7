// @title        opsync companion API
// @version      1.0
// @description  Session, task assignment and order reconciliation over the laundry backend.
// @host         localhost:8090
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/laundrydesk/opsync/internal/api"
	"github.com/laundrydesk/opsync/internal/api/handler"
	"github.com/laundrydesk/opsync/internal/core/ports"
	"github.com/laundrydesk/opsync/internal/core/registry"
	"github.com/laundrydesk/opsync/internal/core/service"
	"github.com/laundrydesk/opsync/internal/infrastructure/config"
	mongodb "github.com/laundrydesk/opsync/internal/infrastructure/db/mongo"
	redisdb "github.com/laundrydesk/opsync/internal/infrastructure/db/redis"
	"github.com/laundrydesk/opsync/internal/infrastructure/gateway"
	"github.com/laundrydesk/opsync/internal/infrastructure/queue"
	"github.com/laundrydesk/opsync/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// resetFunc adapts a function to ports.Resetter.
type resetFunc func()

func (f resetFunc) Reset() { f() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{Service: "opsync"})
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "opsync",
		Env:     cfg.Env,
	})

	// --- Credential store ---
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
	}
	defer rdb.Close()
	store := redisdb.NewCredentialStore(rdb, cfg.Redis.KeyPrefix)

	checks := map[string]handler.Check{
		"redis": func(ctx context.Context) error { return redisdb.Ping(ctx, rdb, 2*time.Second) },
	}

	// --- Audit trail (optional) ---
	var (
		recorder ports.TransitionRecorder
		history  handler.TransitionHistory
	)
	if cfg.Mongo.URI != "" {
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mongo")
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Disconnect(dctx)
		}()

		repo := mongodb.NewTransitionRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to ensure transition indexes")
		}
		recorder, history = repo, repo
		checks["mongo"] = func(ctx context.Context) error { return mongodb.Ping(ctx, client) }
	} else {
		log.Info().Msg("MONGO_URI not set, transition audit disabled")
	}

	// --- Transition publishing (optional) ---
	var publisher ports.TransitionPublisher
	if cfg.AMQP.URL != "" {
		p := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger.Component("publisher"))
		defer p.Close()
		publisher = p
	} else {
		log.Info().Msg("AMQP_URL not set, transition publishing disabled")
	}

	// --- Registries and session ---
	tasks := registry.NewTasks()
	orders := registry.NewOrders()

	client, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, logger.Component("gateway"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build gateway client")
	}

	// The reconciler depends on the session through the gateway, so its
	// failure memory is reset through a late-bound adapter.
	var reconciler *service.Reconciler
	session := service.NewSessionService(
		gateway.NewAuthAPI(client),
		store,
		logger.Component("session"),
		tasks,
		orders,
		resetFunc(func() {
			if reconciler != nil {
				reconciler.Reset()
			}
		}),
	)

	authed := gateway.NewAuthenticated(client, session, logger.Component("gateway"))
	ordersAPI := gateway.NewOrdersAPI(authed)

	reconciler = service.NewReconciler(tasks, orders, ordersAPI, recorder, publisher, service.ReconcileOptions{
		MaxFailures: cfg.Reconcile.MaxFailures,
		BackoffBase: cfg.Reconcile.BackoffBase,
		BackoffMax:  cfg.Reconcile.BackoffMax,
	}, logger.Component("reconciler"))

	trigger := queue.NewTrigger(func(ctx context.Context) {
		if session.Authenticated() {
			reconciler.Run(ctx)
		}
	}, cfg.Reconcile.Interval, logger.Component("trigger"))

	taskSvc := service.NewTaskService(gateway.NewTasksAPI(authed), tasks, orders, session, trigger, logger.Component("tasks"))
	orderSvc := service.NewOrderService(ordersAPI, orders, trigger, logger.Component("orders"))
	syncer := service.NewSyncer(session, taskSvc, orderSvc, reconciler, logger.Component("sync"))

	// --- Restore a persisted session ---
	if err := session.LoadUser(ctx); err != nil {
		log.Warn().Err(err).Msg("stored credential rejected, starting logged out")
	}
	if session.Authenticated() {
		if _, err := syncer.Pull(ctx); err != nil {
			log.Warn().Err(err).Msg("initial pull failed")
		}
	}

	trigger.Start(ctx)
	defer trigger.Stop()

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Sessions:   session,
		Tasks:      taskSvc,
		Orders:     orderSvc,
		History:    history,
		Syncer:     syncer,
		Reconciler: reconciler,
		Checks:     checks,
		Registerer: prometheus.DefaultRegisterer,
	}, logger.Component("api"))

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("backend", cfg.API.BaseURL).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}
