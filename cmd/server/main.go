package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"codeshare/internal/config"
	"codeshare/internal/metrics"
	"codeshare/internal/routers"
	"codeshare/internal/session"
	"codeshare/internal/store"
	"codeshare/internal/utils"
)

func newStore(cfg *config.Config) (store.SessionStore, error) {
	if cfg.StoreBackend == config.BackendPostgres {
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return store.NewRedisStore(rdb), nil
}

func main() {
	logger := utils.NewLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	st, err := newStore(cfg)
	if err != nil {
		log.Fatalf("store (%s): %v", cfg.StoreBackend, err)
	}
	logger.Info("store ready", "backend", cfg.StoreBackend)

	registry := session.NewRegistry(st, logger)
	broker := session.NewBroker(registry, logger)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	r.Use(metrics.Middleware)

	r.Mount("/", routers.New(logger, broker))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	addr := ":" + cfg.Port
	log.Printf("session-svc listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
