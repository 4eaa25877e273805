package main

import (
	"context"
	"flag"
	"log"
	"time"

	"zapfollow-billing/internal/config"
	pg "zapfollow-billing/internal/infra/db/postgres"
	"zapfollow-billing/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := pg.ApplySchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	logger.Info().Msg("schema applied")
}
