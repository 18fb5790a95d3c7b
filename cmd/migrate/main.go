package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pepper-deal-bot/internal/infra/config"
	"pepper-deal-bot/internal/infra/db"
	"pepper-deal-bot/internal/infra/log"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate up|down|status")
		os.Exit(2)
	}

	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: нет подключения к БД")
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "up":
		if err := db.MigrateUp(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrate: применение не удалось")
		}
		logger.Info().Msg("миграции применены")
	case "down":
		if err := db.MigrateDown(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrate: откат не удался")
		}
		logger.Info().Msg("последняя миграция откатена")
	case "status":
		statuses, err := db.MigrationStatus(ctx, pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate: статус недоступен")
		}
		for _, status := range statuses {
			applied := string(status.State)
			if !status.AppliedAt.IsZero() {
				applied = status.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-8d %-40s %s\n", status.Source.Version, status.Source.Path, applied)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: migrate up|down|status")
		os.Exit(2)
	}
}
