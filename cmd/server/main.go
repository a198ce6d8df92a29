package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	platformredis "registrar/internal/platform/redis"
	httptransport "registrar/internal/transport/http"
	"registrar/internal/users/cache"
	"registrar/internal/users/command"
	"registrar/internal/users/directory"
	"registrar/internal/users/handler"
	"registrar/internal/users/metrics"
	"registrar/internal/users/query"
	"registrar/internal/users/service"
	"registrar/internal/users/store"
	"registrar/pkg/platform/audit/publisher"
	"registrar/pkg/platform/audit/sink"
	auditmemory "registrar/pkg/platform/audit/store/memory"
)

// main wires the dependency graph and keeps the server lifecycle small.
// Unconfigured backends fall back to in-memory implementations so the
// service runs standalone in development.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var userStore service.UserStore
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres pool", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		pg := store.NewPostgres(db)
		if cfg.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				log.Error("failed to ensure schema", "error", err)
				os.Exit(1)
			}
		}
		userStore = pg
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory user store")
		userStore = store.NewInMemory()
	}

	var dir directory.Directory
	if cfg.CognitoUserPoolID != "" {
		cognito, err := directory.NewCognito(ctx, cfg.CognitoRegion, cfg.CognitoUserPoolID)
		if err != nil {
			log.Error("failed to build cognito directory", "error", err)
			os.Exit(1)
		}
		dir = cognito
	} else {
		log.Warn("COGNITO_USER_POOL_ID not set, using in-memory directory")
		dir = directory.NewInMemory()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		dir = cache.New(dir, redisClient.Client,
			cache.WithTTL(config.PrincipalCacheTTL),
			cache.WithLogger(log),
		)
	}

	auditOpts := []publisher.Option{publisher.WithAsyncBuffer(256)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := sink.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
		if err != nil {
			log.Error("failed to connect kafka audit sink", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaSink.Close(flushCtx); err != nil {
				log.Warn("kafka audit sink close failed", "error", err)
			}
		}()
		auditOpts = append(auditOpts, publisher.WithSink(kafkaSink))
	}
	auditPublisher := publisher.NewPublisher(auditmemory.NewInMemoryStore(), auditOpts...)
	defer auditPublisher.Close()

	svc := service.New(userStore, dir,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(metrics.New()),
	)

	users := handler.New(command.NewDispatcher(svc), query.NewDispatcher(svc), log)
	router := httptransport.NewRouter(users, cfg.JWTSigningKey, log)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting registrar", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("registrar stopped")
}
