package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	models "github.com/deploydeck/controlplane/internal/data/models"
)

// InitializeDatabase opens the connection pool and runs migrations. Tables
// are created in dependency order: deployments reference apps.
func InitializeDatabase(databaseURL string) (*pgxpool.Pool, error) {
	slog.Info("initializing database")
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := models.MigrateUserTable(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate user table: %w", err)
	}
	if err := models.MigrateAppTable(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate app table: %w", err)
	}
	if err := models.MigrateDeploymentTable(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate deployment table: %w", err)
	}

	return pool, nil
}
