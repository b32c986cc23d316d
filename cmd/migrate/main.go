package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sir_venger/mediagate/internal/config"
	"github.com/sir_venger/mediagate/internal/repo"
)

// main применяет, откатывает или показывает миграции каталога в Postgres.
func main() {
	command := flag.String("cmd", "up", "up | down | status")
	dsnFlag := flag.String("dsn", "", "postgres DSN (по умолчанию catalog_dsn из конфигурации)")
	flag.Parse()

	dsn := strings.TrimSpace(*dsnFlag)
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
		dsn = strings.TrimSpace(cfg.CatalogDSN)
	}
	if dsn == "" {
		log.Fatal().Msg("catalog_dsn is not configured")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		log.Info().Str("dsn", strings.SplitN(dsn, "://", 2)[0]).Msg("catalog is not postgres, skipping migrations")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch *command {
	case "up":
		err = repo.ApplyMigrations(ctx, dsn)
	case "down":
		err = repo.RollbackMigration(ctx, dsn)
	case "status":
		err = repo.MigrationStatus(ctx, dsn)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("cmd", *command).Msg("migrate")
	}

	log.Info().Str("cmd", *command).Msg("migrations done")
}
