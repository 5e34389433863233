package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "food_discovery/internal/adapters/http_server"
	"food_discovery/internal/adapters/observability"
	redisad "food_discovery/internal/adapters/redis"
	"food_discovery/internal/app"
	"food_discovery/internal/engine"
	"food_discovery/internal/shared"
	mysqlrepo "food_discovery/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	eng := engine.New(log.Logger)
	if err := eng.Load(context.Background(), repo); err != nil {
		log.Fatal().Err(err).Msg("engine warm load failed")
	}

	cmd := app.NewCommandService(eng, repo, cache, log.Logger)
	q := app.NewQueryService(eng, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Q:           q,
		C:           cmd,
		IngestRPS:   cfg.IngestRPS,
		IngestBurst: cfg.IngestBurst,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
