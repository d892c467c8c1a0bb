// cmd/historian/main.go drains the Redis audit queue into Postgres and reaps settled
// rooms once they have been idle for SETTLED_ROOM_TTL_SEC. It runs beside a
// server started with ROOM_STORE=postgres and REDIS_ADDR set.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jason-s-yu/scoreroom/internal/cache"
	"github.com/jason-s-yu/scoreroom/internal/config"
	"github.com/jason-s-yu/scoreroom/internal/database"
	"github.com/jason-s-yu/scoreroom/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.Postgres.URL())
	if err != nil {
		logger.WithError(err).Fatal("postgres connection failed")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}
	pg := database.New(pool)

	rdb, err := cache.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.WithError(err).Fatal("redis connection failed")
	}
	defer rdb.Close()

	hs := historian.New(rdb, pg, historian.Options{
		Queue:      cfg.AuditQueue,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlush,
		Logger:     logger,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		historian.RunReaper(ctx, pg, cfg.SettledRoomTTL, historian.DefaultReapInterval, logger)
	}()

	if err := hs.Run(ctx); err != nil {
		logger.WithError(err).Error("final flush failed")
	}
	wg.Wait()
	logger.Info("historian shutdown complete")
}
