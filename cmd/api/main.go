// Command api runs the control plane: the HTTP surface for enqueuing
// jobs, inspecting queue state, triggering scheduled-job promotion, and
// exposing the domain's Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pytake/taskqueue/internal/authn"
	"github.com/pytake/taskqueue/internal/config"
	"github.com/pytake/taskqueue/internal/httpapi"
	"github.com/pytake/taskqueue/internal/logger"
	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/queue"
	"github.com/pytake/taskqueue/internal/store"
	"github.com/pytake/taskqueue/internal/wshub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel)
	log.Infow("starting control plane", "version", cfg.AppVersion)

	ctx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.NewRedisStore(ctx, store.Options{
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
	sink := metrics.NewSink(db)
	process := metrics.NewProcessRegistry()

	hub := wshub.New(cfg.WebSocket.MaxConnections, log)
	engine.SetPublisher(hub)

	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	if cfg.WebSocket.Enabled {
		go hub.BridgeFromStore(bridgeCtx, db)
	}

	var jwtManager *authn.JWTManager
	if cfg.Auth.Enabled {
		jwtManager = authn.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	}

	handler := httpapi.New(engine, sink, process, log, cfg.AppVersion)
	router := httpapi.NewRouter(handler, db, cfg, jwtManager, hub, process)

	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.AppPort),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start control plane server", "error", err)
		}
	}()

	log.Infow("control plane started", "port", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down control plane...")
	cancelBridge()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatal("control plane forced to shutdown", "error", err)
	}

	log.Info("control plane exited")
}
