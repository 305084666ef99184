package store

import (
	"context"
	"errors"

	"github.com/deploydeck/controlplane/internal/data/models"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the requesting user. Callers must not distinguish the two cases.
var ErrNotFound = errors.New("not found")

// AppPatch carries the fields of a partial app update. Nil means the field
// was not supplied and must be left untouched.
type AppPatch struct {
	Name    *string
	RepoURL *string
	Branch  *string
	EnvVars map[string]string
}

// Empty reports whether the patch touches no fields.
func (p AppPatch) Empty() bool {
	return p.Name == nil && p.RepoURL == nil && p.Branch == nil && p.EnvVars == nil
}

// Store is the persistence boundary. Every implementation must scope app
// and deployment access by the owning user where a userID is given.
type Store interface {
	ListApps(ctx context.Context, userID string) ([]models.App, error)
	GetApp(ctx context.Context, appID, userID string) (*models.App, error)
	CreateApp(ctx context.Context, app *models.App) error
	UpdateApp(ctx context.Context, appID, userID string, patch AppPatch) (*models.App, error)
	DeleteApp(ctx context.Context, appID, userID string) error

	HasSuccessfulDeployment(ctx context.Context, appID string) (bool, error)
	CreateDeployment(ctx context.Context, appID string) (*models.Deployment, error)
	PruneDeployments(ctx context.Context, appID string, keep int) error
	GetDeploymentForUser(ctx context.Context, deploymentID, userID string) (*models.Deployment, error)
	UpdateDeployment(ctx context.Context, deploymentID string, status, url *string) (*models.Deployment, error)

	UpsertUserToken(ctx context.Context, githubID, username, encryptedToken string) (int64, error)
	ClearUserToken(ctx context.Context, githubID string) error
	GetEncryptedToken(ctx context.Context, githubID string) (*string, error)
}
