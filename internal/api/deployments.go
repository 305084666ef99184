package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deploydeck/controlplane/internal/dispatch"
	"github.com/deploydeck/controlplane/internal/store"
)

const deploymentsToKeep = 5

func (app *App) DeployApp(c *gin.Context) {
	ctx := c.Request.Context()
	userID := app.userID(c)

	target, err := app.Store.GetApp(ctx, c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "App not found"})
			return
		}
		app.Logger.Error("failed to load app for deploy", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}

	// Recover the user's stored repo token. Any failure here falls back to
	// deploying without one; public repositories still work.
	userToken := ""
	if encrypted, err := app.Store.GetEncryptedToken(ctx, userID); err != nil {
		app.Logger.Error("failed to retrieve user token", "error", err)
	} else if encrypted != nil && app.Cipher != nil {
		if userToken, err = app.Cipher.Decrypt(*encrypted); err != nil {
			app.Logger.Error("failed to decrypt user token", "error", err)
			userToken = ""
		}
	}

	// Header token as a backwards-compatibility fallback.
	if userToken == "" {
		userToken = c.GetHeader("X-Github-Token")
	}

	deployment, err := app.Store.CreateDeployment(ctx, target.ID)
	if err != nil {
		app.Logger.Error("failed to create deployment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}

	if err := app.Store.PruneDeployments(ctx, target.ID, deploymentsToKeep); err != nil {
		app.Logger.Error("failed to cleanup old deployments", "error", err)
	}

	if !app.Cfg.WorkflowConfigured() || app.Dispatcher == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server configuration error: GitHub repository not configured"})
		return
	}

	err = app.Dispatcher.DeployApp(ctx, dispatch.DeployInput{
		AppID:         target.ID,
		RepoURL:       target.RepoURL,
		Branch:        target.Branch,
		DeploymentID:  deployment.ID,
		EnvVars:       target.EnvVars,
		UserRepoToken: userToken,
	})
	if err != nil {
		// The QUEUED row stays; the callback or an operator reconciles it.
		app.Logger.Error("failed to trigger deploy workflow", "app_id", target.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to trigger deployment"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":       "Deployment queued",
		"deployment_id": deployment.ID,
	})
}

func (app *App) GetDeployment(c *gin.Context) {
	deployment, err := app.Store.GetDeploymentForUser(c.Request.Context(), c.Param("id"), app.userID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Deployment not found"})
			return
		}
		app.Logger.Error("failed to get deployment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, deployment)
}

type updateDeploymentRequest struct {
	Status *string `json:"status"`
	URL    *string `json:"url"`
}

// UpdateDeploymentStatus ingests the CI callback. Supplied fields overwrite
// the row, missing ones are preserved; last write wins, no ordering guard.
func (app *App) UpdateDeploymentStatus(c *gin.Context) {
	var req updateDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	deployment, err := app.Store.UpdateDeployment(c.Request.Context(), c.Param("id"), req.Status, req.URL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Deployment not found"})
			return
		}
		app.Logger.Error("failed to update deployment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, deployment)
}
