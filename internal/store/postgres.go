package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deploydeck/controlplane/internal/data/models"
)

// appWithLatest selects apps annotated with the most recent deployment's
// status and url, if any.
const appWithLatest = `
	SELECT a.id, a.name, a.repo_url, a.branch, a.user_id, a.env_vars, a.created_at,
	       d.status AS last_status, d.url AS last_url
	FROM apps a
	LEFT JOIN LATERAL (
		SELECT status, url
		FROM deployments
		WHERE app_id = a.id
		ORDER BY created_at DESC
		LIMIT 1
	) d ON true
`

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func scanApp(row pgx.Row, app *models.App) error {
	return row.Scan(&app.ID, &app.Name, &app.RepoURL, &app.Branch, &app.UserID,
		&app.EnvVars, &app.CreatedAt, &app.LastStatus, &app.LastURL)
}

func (p *Postgres) ListApps(ctx context.Context, userID string) ([]models.App, error) {
	rows, err := p.pool.Query(ctx, appWithLatest+` WHERE a.user_id = $1 ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	apps := []models.App{}
	for rows.Next() {
		var app models.App
		if err := scanApp(rows, &app); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (p *Postgres) GetApp(ctx context.Context, appID, userID string) (*models.App, error) {
	row := p.pool.QueryRow(ctx, appWithLatest+` WHERE a.id = $1 AND a.user_id = $2`, appID, userID)

	var app models.App
	if err := scanApp(row, &app); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get app: %w", err)
	}
	return &app, nil
}

func (p *Postgres) CreateApp(ctx context.Context, app *models.App) error {
	app.ID = uuid.NewString()
	err := p.pool.QueryRow(ctx,
		`INSERT INTO apps (id, name, repo_url, branch, user_id, env_vars)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		app.ID, app.Name, app.RepoURL, app.Branch, app.UserID, app.EnvVars,
	).Scan(&app.CreatedAt)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	return nil
}

// buildAppUpdate translates the supplied patch fields into a parameterized
// SET clause. Field names are a fixed set chosen here, never caller input.
func buildAppUpdate(patch AppPatch) (string, []any) {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.RepoURL != nil {
		add("repo_url", *patch.RepoURL)
	}
	if patch.Branch != nil {
		add("branch", *patch.Branch)
	}
	if patch.EnvVars != nil {
		add("env_vars", patch.EnvVars)
	}

	return strings.Join(sets, ", "), args
}

func (p *Postgres) UpdateApp(ctx context.Context, appID, userID string, patch AppPatch) (*models.App, error) {
	setClause, args := buildAppUpdate(patch)
	if setClause == "" {
		return nil, errors.New("no fields to update")
	}

	args = append(args, appID, userID)
	query := fmt.Sprintf(
		`UPDATE apps SET %s WHERE id = $%d AND user_id = $%d
		 RETURNING id, name, repo_url, branch, user_id, env_vars, created_at`,
		setClause, len(args)-1, len(args))

	var app models.App
	err := p.pool.QueryRow(ctx, query, args...).Scan(
		&app.ID, &app.Name, &app.RepoURL, &app.Branch, &app.UserID, &app.EnvVars, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update app: %w", err)
	}
	return &app, nil
}

func (p *Postgres) DeleteApp(ctx context.Context, appID, userID string) error {
	// Deployments first: they reference the app row.
	if _, err := p.pool.Exec(ctx, `DELETE FROM deployments WHERE app_id = $1`, appID); err != nil {
		return fmt.Errorf("delete deployments: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM apps WHERE id = $1 AND user_id = $2`, appID, userID)
	if err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) HasSuccessfulDeployment(ctx context.Context, appID string) (bool, error) {
	var id string
	err := p.pool.QueryRow(ctx,
		`SELECT id FROM deployments WHERE app_id = $1 AND status = $2 LIMIT 1`,
		appID, models.StatusSuccess).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check successful deployments: %w", err)
	}
	return true, nil
}

func (p *Postgres) CreateDeployment(ctx context.Context, appID string) (*models.Deployment, error) {
	dep := &models.Deployment{
		ID:     uuid.NewString(),
		AppID:  appID,
		Status: models.StatusQueued,
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO deployments (id, app_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		dep.ID, dep.AppID, dep.Status,
	).Scan(&dep.CreatedAt, &dep.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create deployment: %w", err)
	}
	return dep, nil
}

func (p *Postgres) PruneDeployments(ctx context.Context, appID string, keep int) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM deployments
		WHERE app_id = $1
		AND id NOT IN (
			SELECT id FROM deployments
			WHERE app_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`, appID, keep)
	if err != nil {
		return fmt.Errorf("prune deployments: %w", err)
	}
	return nil
}

func (p *Postgres) GetDeploymentForUser(ctx context.Context, deploymentID, userID string) (*models.Deployment, error) {
	var dep models.Deployment
	err := p.pool.QueryRow(ctx,
		`SELECT d.id, d.app_id, d.status, d.url, d.created_at, d.updated_at
		 FROM deployments d
		 JOIN apps a ON d.app_id = a.id
		 WHERE d.id = $1 AND a.user_id = $2`,
		deploymentID, userID,
	).Scan(&dep.ID, &dep.AppID, &dep.Status, &dep.URL, &dep.CreatedAt, &dep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get deployment: %w", err)
	}
	return &dep, nil
}

func (p *Postgres) UpdateDeployment(ctx context.Context, deploymentID string, status, url *string) (*models.Deployment, error) {
	var dep models.Deployment
	err := p.pool.QueryRow(ctx,
		`UPDATE deployments
		 SET status = COALESCE($1, status), url = COALESCE($2, url), updated_at = now()
		 WHERE id = $3
		 RETURNING id, app_id, status, url, created_at, updated_at`,
		status, url, deploymentID,
	).Scan(&dep.ID, &dep.AppID, &dep.Status, &dep.URL, &dep.CreatedAt, &dep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update deployment: %w", err)
	}
	return &dep, nil
}

func (p *Postgres) UpsertUserToken(ctx context.Context, githubID, username, encryptedToken string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (github_id, github_username, encrypted_token, token_updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (github_id)
		 DO UPDATE SET encrypted_token = $3, token_updated_at = now()
		 RETURNING id`,
		githubID, username, encryptedToken,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert user token: %w", err)
	}
	return id, nil
}

func (p *Postgres) ClearUserToken(ctx context.Context, githubID string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE users SET encrypted_token = NULL, token_updated_at = now() WHERE github_id = $1`,
		githubID)
	if err != nil {
		return fmt.Errorf("clear user token: %w", err)
	}
	return nil
}

func (p *Postgres) GetEncryptedToken(ctx context.Context, githubID string) (*string, error) {
	var token *string
	err := p.pool.QueryRow(ctx,
		`SELECT encrypted_token FROM users WHERE github_id = $1`, githubID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get encrypted token: %w", err)
	}
	return token, nil
}
