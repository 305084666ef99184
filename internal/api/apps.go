package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/deploydeck/controlplane/internal/data/models"
	"github.com/deploydeck/controlplane/internal/store"
)

var (
	repoURLPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+$`)
	branchPattern  = regexp.MustCompile(`^[a-zA-Z0-9_./-]+$`)
)

// parseEnvVars validates that env_vars, if supplied, is a flat object of
// string values. Arrays and scalars are rejected.
func parseEnvVars(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]string{}, nil
	}
	var envVars map[string]string
	if err := json.Unmarshal(raw, &envVars); err != nil {
		return nil, errors.New("env_vars must be an object")
	}
	if envVars == nil {
		envVars = map[string]string{}
	}
	return envVars, nil
}

func (app *App) ListApps(c *gin.Context) {
	apps, err := app.Store.ListApps(c.Request.Context(), app.userID(c))
	if err != nil {
		app.Logger.Error("failed to list apps", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, apps)
}

func (app *App) GetApp(c *gin.Context) {
	result, err := app.Store.GetApp(c.Request.Context(), c.Param("id"), app.userID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "App not found"})
			return
		}
		app.Logger.Error("failed to get app", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type createAppRequest struct {
	Name    string          `json:"name"`
	RepoURL string          `json:"repo_url"`
	Branch  string          `json:"branch"`
	EnvVars json.RawMessage `json:"env_vars"`
}

func (app *App) CreateApp(c *gin.Context) {
	var req createAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	if req.Name == "" || req.RepoURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing name or repo_url"})
		return
	}
	if !repoURLPattern.MatchString(req.RepoURL) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid repo_url format. Use: owner/repo"})
		return
	}
	if req.Branch != "" && !branchPattern.MatchString(req.Branch) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid branch name"})
		return
	}
	envVars, err := parseEnvVars(req.EnvVars)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	branch := req.Branch
	if branch == "" {
		branch = "main"
	}

	newApp := &models.App{
		Name:    req.Name,
		RepoURL: req.RepoURL,
		Branch:  branch,
		UserID:  app.userID(c),
		EnvVars: envVars,
	}
	if err := app.Store.CreateApp(c.Request.Context(), newApp); err != nil {
		app.Logger.Error("failed to create app", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create app"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       newApp.ID,
		"name":     newApp.Name,
		"repo_url": newApp.RepoURL,
		"branch":   newApp.Branch,
		"env_vars": newApp.EnvVars,
	})
}

type updateAppRequest struct {
	Name    *string         `json:"name"`
	RepoURL *string         `json:"repo_url"`
	Branch  *string         `json:"branch"`
	EnvVars json.RawMessage `json:"env_vars"`
}

func (app *App) UpdateApp(c *gin.Context) {
	var req updateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	userID := app.userID(c)
	appID := c.Param("id")

	// Ownership check before touching anything.
	if _, err := app.Store.GetApp(ctx, appID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "App not found"})
			return
		}
		app.Logger.Error("failed to load app for update", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}

	patch := store.AppPatch{
		Name:    req.Name,
		RepoURL: req.RepoURL,
		Branch:  req.Branch,
	}
	if req.EnvVars != nil {
		envVars, err := parseEnvVars(req.EnvVars)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		patch.EnvVars = envVars
	}

	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No fields to update"})
		return
	}

	updated, err := app.Store.UpdateApp(ctx, appID, userID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "App not found"})
			return
		}
		app.Logger.Error("failed to update app", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       updated.ID,
		"name":     updated.Name,
		"repo_url": updated.RepoURL,
		"branch":   updated.Branch,
		"env_vars": updated.EnvVars,
	})
}

func (app *App) DeleteApp(c *gin.Context) {
	ctx := c.Request.Context()
	userID := app.userID(c)
	appID := c.Param("id")

	if _, err := app.Store.GetApp(ctx, appID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "App not found"})
			return
		}
		app.Logger.Error("failed to load app for delete", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}

	// Apps that ever deployed successfully likely have live cloud
	// resources. Signal the destroy workflow, but never let a dispatch
	// failure block deletion; resources can be cleaned up manually.
	hasResources, err := app.Store.HasSuccessfulDeployment(ctx, appID)
	if err != nil {
		app.Logger.Error("failed to check deployments before delete", "error", err)
	}
	if hasResources && app.Dispatcher != nil {
		if err := app.Dispatcher.DestroyApp(ctx, appID); err != nil {
			app.Logger.Error("failed to trigger destroy workflow", "app_id", appID, "error", err)
		} else {
			app.Logger.Info("triggered destroy workflow", "app_id", appID)
		}
	}

	if err := app.Store.DeleteApp(ctx, appID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "App not found"})
			return
		}
		app.Logger.Error("failed to delete app", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}
