// Command worker runs a pool of queue workers that drain the priority
// queues, promote due scheduled jobs, and dispatch each job to its
// registered handler.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pytake/taskqueue/internal/bench"
	"github.com/pytake/taskqueue/internal/config"
	"github.com/pytake/taskqueue/internal/logger"
	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/queue"
	"github.com/pytake/taskqueue/internal/store"
	"github.com/pytake/taskqueue/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel)
	log.Infow("starting worker pool", "version", cfg.AppVersion)

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.NewRedisStore(connectCtx, store.Options{
		URL:          cfg.RedisURL,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
		MaxRetries:   cfg.RedisMaxRetries,
	})
	cancelConnect()
	if err != nil {
		log.Fatal("failed to connect to redis", "error", err)
	}
	defer db.Close()

	engine := queue.NewEngine(db, cfg.Queue.RecordTTL)
	registry := queue.NewRegistry()
	sink := metrics.NewSink(db)

	concurrency := runtime.NumCPU()
	if concurrency < 1 {
		concurrency = 1
	}

	publisher := queue.NewStorePublisher(db)
	engine.SetPublisher(publisher)
	pool := worker.NewPool(concurrency, engine, registry, sink, publisher, log, cfg.Queue.DequeueTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	log.Infow("worker pool started", "concurrency", concurrency)

	var scheduler *bench.RecurringScheduler
	if cfg.Demo.RecurringEnabled {
		scheduler = bench.NewRecurringScheduler(engine, sink, log)
		if err := scheduler.AddBurst(cfg.Demo.RecurringSpec, bench.DemoSize(cfg.Demo.RecurringSize)); err != nil {
			log.Fatal("failed to schedule recurring demo burst", "error", err)
		}
		scheduler.Start()
		log.Infow("recurring demo burst scheduler started", "spec", cfg.Demo.RecurringSpec, "size", cfg.Demo.RecurringSize)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker pool...")
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	pool.Wait()
	log.Info("worker pool exited")
}
