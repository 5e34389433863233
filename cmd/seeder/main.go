package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"food_discovery/internal/adapters/observability"
	redisad "food_discovery/internal/adapters/redis"
	"food_discovery/internal/app"
	"food_discovery/internal/domain"
	"food_discovery/internal/engine"
	"food_discovery/internal/shared"
	mysqlrepo "food_discovery/internal/storage/mysql"
)

// seedFile is the bulk-import format: catalog first, then the
// user-generated content that references it.
type seedFile struct {
	Places    []domain.Place
	Products  []domain.Product
	Inventory []domain.InventoryLink
	Reviews   []domain.Review
	Questions []domain.Question
	Answers   []domain.Answer
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	if cfg.SeedFile == "" {
		log.Fatal().Msg("SEED_FILE not set")
	}

	raw, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("read seed file failed")
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatal().Err(err).Msg("parse seed file failed")
	}

	log.Info().
		Int("places", len(seed.Places)).
		Int("products", len(seed.Products)).
		Int("inventory", len(seed.Inventory)).
		Int("reviews", len(seed.Reviews)).
		Int("workers", cfg.SeedWorkers).
		Msg("seeder starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	eng := engine.New(log.Logger)
	if err := eng.Load(ctx, repo); err != nil {
		log.Fatal().Err(err).Msg("engine warm load failed")
	}
	cmd := app.NewCommandService(eng, repo, cache, log.Logger)

	lim := rate.NewLimiter(rate.Limit(cfg.SeedRPS), cfg.SeedWorkers)
	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))
	var wg sync.WaitGroup

	// run fans the units of one phase out over the worker pool and waits
	// for the phase to drain before the caller starts the next one, so
	// referenced entities always land first.
	run := func(n int, do func(i int)) {
		for i := 0; i < n; i++ {
			i := i
			if err := lim.Wait(ctx); err != nil {
				log.Fatal().Err(err).Msg("rate limiter wait failed")
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				log.Fatal().Err(err).Msg("semaphore acquire failed")
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				do(i)
			}()
		}
		wg.Wait()
	}

	run(len(seed.Places), func(i int) {
		if _, err := cmd.UpsertPlace(ctx, seed.Places[i]); err != nil {
			log.Warn().Err(err).Int64("id", seed.Places[i].ID).Msg("seed place failed")
		}
	})
	run(len(seed.Products), func(i int) {
		if _, err := cmd.UpsertProduct(ctx, seed.Products[i]); err != nil {
			log.Warn().Err(err).Int64("id", seed.Products[i].ID).Msg("seed product failed")
		}
	})
	run(len(seed.Inventory), func(i int) {
		if _, err := cmd.UpsertInventory(ctx, seed.Inventory[i]); err != nil {
			log.Warn().Err(err).Int64("id", seed.Inventory[i].ID).Msg("seed inventory link failed")
		}
	})
	run(len(seed.Reviews), func(i int) {
		if _, err := cmd.SubmitReview(ctx, seed.Reviews[i]); err != nil {
			log.Warn().Err(err).Int64("id", seed.Reviews[i].ID).Msg("seed review failed")
		}
	})
	run(len(seed.Questions), func(i int) {
		if _, err := cmd.AskQuestion(ctx, seed.Questions[i]); err != nil {
			log.Warn().Err(err).Int64("id", seed.Questions[i].ID).Msg("seed question failed")
		}
	})
	run(len(seed.Answers), func(i int) {
		if _, err := cmd.CreateAnswer(ctx, seed.Answers[i]); err != nil {
			log.Warn().Err(err).Int64("id", seed.Answers[i].ID).Msg("seed answer failed")
		}
	})

	log.Info().Msg("seeding completed")
}
