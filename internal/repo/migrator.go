package repo

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ApplyMigrations запускает goose-миграции для Postgres, используя встроенные SQL файлы.
func ApplyMigrations(ctx context.Context, dsn string) error {
	return withMigrator(ctx, dsn, func(db *sql.DB) error {
		return goose.UpContext(ctx, db, migrationsDir)
	})
}

// RollbackMigration откатывает последнюю применённую миграцию.
func RollbackMigration(ctx context.Context, dsn string) error {
	return withMigrator(ctx, dsn, func(db *sql.DB) error {
		return goose.DownContext(ctx, db, migrationsDir)
	})
}

// MigrationStatus печатает состояние миграций через логгер goose.
func MigrationStatus(ctx context.Context, dsn string) error {
	return withMigrator(ctx, dsn, func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, migrationsDir)
	})
}

func withMigrator(ctx context.Context, dsn string, fn func(db *sql.DB) error) error {
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("catalog dsn is empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return fn(db)
}
