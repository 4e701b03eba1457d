package main

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"kaki_store/internal/adapters/observability"
	redisad "kaki_store/internal/adapters/redis"
	"kaki_store/internal/adapters/storedata"
	"kaki_store/internal/app"
	"kaki_store/internal/shared"
	mysqlrepo "kaki_store/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("base", cfg.StoreDataBase).
		Int("workers", cfg.Workers).
		Msg("store sync starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := storedata.New(cfg.StoreDataBase, cfg.StoreDataKey, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store data client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	ing := app.NewIngestionService(client, repo, cache)

	ids, err := ing.ListStoreIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("listing stores failed")
	}
	log.Info().Int("stores", len(ids)).Msg("store listing fetched")

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, id := range ids {
		id := id

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(storeID string) {
			defer wg.Done()
			defer sem.Release(int64(1))

			if err := ing.SyncStore(ctx, storeID); err != nil {
				observability.ObserveSync("error")
				log.Warn().Str("id", storeID).Err(err).Msg("sync failed")
				return
			}
			observability.ObserveSync("ok")
			log.Info().Str("id", storeID).Msg("sync ok")
		}(id)
	}

	wg.Wait()
	log.Info().Msg("store sync completed")
}
