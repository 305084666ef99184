package models

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is a registered deployable repository owned by one user.
type App struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	RepoURL   string            `json:"repo_url"`
	Branch    string            `json:"branch"`
	UserID    string            `json:"user_id"`
	EnvVars   map[string]string `json:"env_vars"`
	CreatedAt time.Time         `json:"created_at"`

	// LastStatus/LastURL come from the most recent deployment, when any.
	LastStatus *string `json:"last_status"`
	LastURL    *string `json:"last_url"`
}

func MigrateAppTable(pool *pgxpool.Pool) error {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS apps (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			repo_url TEXT NOT NULL,
			branch TEXT NOT NULL DEFAULT 'main',
			user_id TEXT NOT NULL,
			env_vars JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}
