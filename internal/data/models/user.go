package models

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type User struct {
	ID             int64      `json:"id"`
	GithubID       string     `json:"github_id"`
	GithubUsername string     `json:"github_username"`
	EncryptedToken *string    `json:"-"`
	TokenUpdatedAt *time.Time `json:"token_updated_at"`
}

func MigrateUserTable(pool *pgxpool.Pool) error {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			github_id TEXT NOT NULL UNIQUE,
			github_username TEXT NOT NULL DEFAULT '',
			encrypted_token TEXT,
			token_updated_at TIMESTAMPTZ
		);
	`)
	return err
}
