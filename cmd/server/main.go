package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/polaris-foundation/polaris-locations-api/config"
	"github.com/polaris-foundation/polaris-locations-api/internal/api/handler"
	"github.com/polaris-foundation/polaris-locations-api/internal/api/middleware"
	"github.com/polaris-foundation/polaris-locations-api/internal/api/router"
	"github.com/polaris-foundation/polaris-locations-api/internal/repository"
	"github.com/polaris-foundation/polaris-locations-api/internal/service"
	"github.com/polaris-foundation/polaris-locations-api/pkg/database"
	"github.com/polaris-foundation/polaris-locations-api/pkg/events"
	"github.com/polaris-foundation/polaris-locations-api/pkg/jwt"
	applogger "github.com/polaris-foundation/polaris-locations-api/pkg/logger"
	"github.com/polaris-foundation/polaris-locations-api/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	// 1. config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", cfg.Server.Version),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. database
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("get sql.DB failed", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	// 4. optional redis: chain cache and write rate limit
	var (
		rdb     *redis.Client
		cache   service.ChainCache
		limiter middleware.RateLimiter
	)
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable, running without chain cache and rate limit", zap.Error(err))
		} else {
			cache, limiter = rdb, rdb
		}
	}

	// 5. optional kafka
	var publisher service.EventPublisher
	kafkaPub := events.NewPublisher(&cfg.Kafka)
	if kafkaPub != nil {
		publisher = kafkaPub
		logger.Info("publishing location events", zap.String("topic", cfg.Kafka.Topic))
	}

	// 6. wiring: repository → service → handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, cache, publisher, logger)
	h := handler.NewHandler(svc, &cfg.Server)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gin.SetMode(gin.ReleaseMode)
	engine := router.Setup(cfg, h, jwtMgr, limiter, reg, logger)

	// 7. http server with graceful shutdown
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Warn("close kafka writer failed", zap.Error(err))
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	sqlDB.Close()

	logger.Info("stopped")
}
