// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/scoreroom/internal/auth"
	"github.com/jason-s-yu/scoreroom/internal/cache"
	"github.com/jason-s-yu/scoreroom/internal/config"
	"github.com/jason-s-yu/scoreroom/internal/database"
	"github.com/jason-s-yu/scoreroom/internal/handlers"
	"github.com/jason-s-yu/scoreroom/internal/historian"
	"github.com/jason-s-yu/scoreroom/internal/middleware"
	"github.com/jason-s-yu/scoreroom/internal/realtime"
	"github.com/jason-s-yu/scoreroom/internal/room"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if err := auth.Init(); err != nil {
		logger.WithError(err).Fatal("auth init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Store == config.StoreRedis || config.RedisConfigured() {
		rdb, err = cache.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
		defer rdb.Close()
	}

	var (
		backend  store.Backend
		audit    store.AuditLog
		reapHere bool
	)
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.ConnectDB(ctx, cfg.Postgres.URL())
		if err != nil {
			logger.WithError(err).Fatal("postgres connection failed")
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.WithError(err).Fatal("migration failed")
		}
		pg := database.New(pool)
		backend, audit = pg, pg
		if rdb != nil {
			// the historian persists queued audit and reaps settled rooms
			audit = cache.NewAuditQueue(rdb, cfg.AuditQueue, pg)
		} else {
			reapHere = true
		}
	case config.StoreRedis:
		rs := cache.NewRoomStore(rdb)
		backend, audit = rs, rs
		reapHere = true
	default:
		mem := store.NewMemory()
		backend, audit = mem, mem
		reapHere = true
	}
	logger.Infof("room store: %s", cfg.Store)

	var feed handlers.Feed = realtime.NewHub(logger)
	if rdb != nil {
		feed = cache.NewNotifier(rdb, logger)
	}

	engine := room.NewEngine(backend, backend, room.Options{MaxRetries: cfg.TxRetries, Logger: logger})
	ctrl := room.NewController(room.ControllerConfig{
		Engine:            engine,
		Audit:             audit,
		Profiles:          backend,
		Notifier:          feed,
		Logger:            logger,
		SideEffectTimeout: cfg.SideEffectTimeout,
	})

	if reapHere {
		go historian.RunReaper(ctx, backend, cfg.SettledRoomTTL, historian.DefaultReapInterval, logger)
	}

	srv := &handlers.RoomServer{
		Controller: ctrl,
		History:    backend,
		Audit:      audit,
		Users:      backend,
		Feed:       feed,
		Logger:     logger,
	}
	if origins := os.Getenv("WS_ORIGIN_PATTERNS"); origins != "" {
		srv.OriginPatterns = []string{origins}
	}

	handler := middleware.Recover(logger)(middleware.LogMiddleware(logger)(srv.Routes()))
	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	go func() {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server exited")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	ctrl.Wait()
}
