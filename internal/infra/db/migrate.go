package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS возвращает встроенные файлы миграций.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func gooseProvider(pool *pgxpool.Pool) (*goose.Provider, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	return goose.NewProvider(goose.DialectPostgres, sqlDB, MigrationsFS())
}

// MigrateUp применяет все недостающие миграции.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	provider, err := gooseProvider(pool)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("применение миграций: %w", err)
	}
	return nil
}

// MigrateDown откатывает последнюю применённую миграцию.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool) error {
	provider, err := gooseProvider(pool)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Down(ctx); err != nil {
		return fmt.Errorf("откат миграции: %w", err)
	}
	return nil
}

// MigrationStatus возвращает статус всех миграций.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool) ([]*goose.MigrationStatus, error) {
	provider, err := gooseProvider(pool)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider.Status(ctx)
}
