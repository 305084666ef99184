package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/deploydeck/controlplane/internal/config"
	"github.com/deploydeck/controlplane/internal/cryptox"
	"github.com/deploydeck/controlplane/internal/data/models"
	"github.com/deploydeck/controlplane/internal/dispatch"
	"github.com/deploydeck/controlplane/internal/store"
)

const (
	testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testSecret        = "cb-secret"
)

// -------- test fakes --------

type fakeStore struct {
	apps        map[string]*models.App
	deployments map[string]*models.Deployment
	tokens      map[string]*string
	userIDs     map[string]int64

	clock time.Time

	listErr             error
	createDeploymentErr error
	pruneErr            error
	tokenLookupErr      error

	pruneCalls []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		apps:        map[string]*models.App{},
		deployments: map[string]*models.Deployment{},
		tokens:      map[string]*string{},
		userIDs:     map[string]int64{},
		clock:       time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) latestDeployment(appID string) *models.Deployment {
	var latest *models.Deployment
	for _, d := range f.deployments {
		if d.AppID != appID {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	return latest
}

func (f *fakeStore) ListApps(ctx context.Context, userID string) ([]models.App, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	apps := []models.App{}
	for _, a := range f.apps {
		if a.UserID != userID {
			continue
		}
		view := *a
		if d := f.latestDeployment(a.ID); d != nil {
			view.LastStatus = &d.Status
			view.LastURL = d.URL
		}
		apps = append(apps, view)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps, nil
}

func (f *fakeStore) GetApp(ctx context.Context, appID, userID string) (*models.App, error) {
	a, ok := f.apps[appID]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	view := *a
	if d := f.latestDeployment(a.ID); d != nil {
		view.LastStatus = &d.Status
		view.LastURL = d.URL
	}
	return &view, nil
}

func (f *fakeStore) CreateApp(ctx context.Context, app *models.App) error {
	app.ID = uuid.NewString()
	app.CreatedAt = f.tick()
	stored := *app
	f.apps[app.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateApp(ctx context.Context, appID, userID string, patch store.AppPatch) (*models.App, error) {
	a, ok := f.apps[appID]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.RepoURL != nil {
		a.RepoURL = *patch.RepoURL
	}
	if patch.Branch != nil {
		a.Branch = *patch.Branch
	}
	if patch.EnvVars != nil {
		a.EnvVars = patch.EnvVars
	}
	view := *a
	return &view, nil
}

func (f *fakeStore) DeleteApp(ctx context.Context, appID, userID string) error {
	a, ok := f.apps[appID]
	if !ok || a.UserID != userID {
		return store.ErrNotFound
	}
	for id, d := range f.deployments {
		if d.AppID == a.ID {
			delete(f.deployments, id)
		}
	}
	delete(f.apps, appID)
	return nil
}

func (f *fakeStore) HasSuccessfulDeployment(ctx context.Context, appID string) (bool, error) {
	for _, d := range f.deployments {
		if d.AppID == appID && d.Status == models.StatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateDeployment(ctx context.Context, appID string) (*models.Deployment, error) {
	if f.createDeploymentErr != nil {
		return nil, f.createDeploymentErr
	}
	now := f.tick()
	d := &models.Deployment{
		ID:        uuid.NewString(),
		AppID:     appID,
		Status:    models.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.deployments[d.ID] = d
	view := *d
	return &view, nil
}

func (f *fakeStore) PruneDeployments(ctx context.Context, appID string, keep int) error {
	f.pruneCalls = append(f.pruneCalls, keep)
	if f.pruneErr != nil {
		return f.pruneErr
	}
	var forApp []*models.Deployment
	for _, d := range f.deployments {
		if d.AppID == appID {
			forApp = append(forApp, d)
		}
	}
	sort.Slice(forApp, func(i, j int) bool { return forApp[i].CreatedAt.After(forApp[j].CreatedAt) })
	for i := keep; i < len(forApp); i++ {
		delete(f.deployments, forApp[i].ID)
	}
	return nil
}

func (f *fakeStore) GetDeploymentForUser(ctx context.Context, deploymentID, userID string) (*models.Deployment, error) {
	d, ok := f.deployments[deploymentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	a, ok := f.apps[d.AppID]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	view := *d
	return &view, nil
}

func (f *fakeStore) UpdateDeployment(ctx context.Context, deploymentID string, status, url *string) (*models.Deployment, error) {
	d, ok := f.deployments[deploymentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if status != nil {
		d.Status = *status
	}
	if url != nil {
		d.URL = url
	}
	d.UpdatedAt = f.tick()
	view := *d
	return &view, nil
}

func (f *fakeStore) UpsertUserToken(ctx context.Context, githubID, username, encryptedToken string) (int64, error) {
	if _, ok := f.userIDs[githubID]; !ok {
		f.userIDs[githubID] = int64(len(f.userIDs) + 1)
	}
	f.tokens[githubID] = &encryptedToken
	return f.userIDs[githubID], nil
}

func (f *fakeStore) ClearUserToken(ctx context.Context, githubID string) error {
	f.tokens[githubID] = nil
	return nil
}

func (f *fakeStore) GetEncryptedToken(ctx context.Context, githubID string) (*string, error) {
	if f.tokenLookupErr != nil {
		return nil, f.tokenLookupErr
	}
	return f.tokens[githubID], nil
}

type deployCall struct {
	in dispatch.DeployInput
}

type fakeDispatcher struct {
	deployErr  error
	destroyErr error

	deploys  []deployCall
	destroys []string
}

func (f *fakeDispatcher) DeployApp(ctx context.Context, in dispatch.DeployInput) error {
	if f.deployErr != nil {
		return f.deployErr
	}
	f.deploys = append(f.deploys, deployCall{in: in})
	return nil
}

func (f *fakeDispatcher) DestroyApp(ctx context.Context, appID string) error {
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.destroys = append(f.destroys, appID)
	return nil
}

// -------- harness --------

type testEnv struct {
	store      *fakeStore
	dispatcher *fakeDispatcher
	app        *App
	router     *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cipher, err := cryptox.New(testEncryptionKey)
	require.NoError(t, err)

	env := &testEnv{
		store:      newFakeStore(),
		dispatcher: &fakeDispatcher{},
	}
	env.app = &App{
		Cfg: &config.Config{
			DeploymentSecret: testSecret,
			RepoOwner:        "deploydeck",
			RepoName:         "platform-automation",
		},
		Store:      env.store,
		Cipher:     cipher,
		Dispatcher: env.dispatcher,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	env.router = gin.New()
	InitializeApp(env.router, env.app)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func userHeaders(userID string) map[string]string {
	return map[string]string{"X-User-Id": userID}
}

func (e *testEnv) doAs(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, userHeaders(userID))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (e *testEnv) createApp(t *testing.T, userID string, body map[string]any) string {
	t.Helper()
	w := e.doAs(t, userID, http.MethodPost, "/apps", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody(t, w)["id"].(string)
}
