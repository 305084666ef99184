package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/deploydeck/controlplane/internal/config"
	"github.com/deploydeck/controlplane/internal/cryptox"
	"github.com/deploydeck/controlplane/internal/dispatch"
	"github.com/deploydeck/controlplane/internal/store"
)

// App holds the handler dependencies. Cipher and Dispatcher may be nil when
// their configuration is missing; the operations that need them fail with a
// server error instead of the process refusing to start.
type App struct {
	Cfg        *config.Config
	Store      store.Store
	Cipher     *cryptox.Cipher
	Dispatcher dispatch.Dispatcher
	Logger     *slog.Logger
}

func InitializeApp(router *gin.Engine, app *App) {
	router.GET("/", app.CheckHealth)

	// CI callback path: deployment-secret trust domain, no user identity.
	router.PATCH("/deployments/:id", app.RequireDeploymentSecret(), app.UpdateDeploymentStatus)

	authed := router.Group("", app.RequireUser())
	authed.GET("/apps", app.ListApps)
	authed.POST("/apps", app.CreateApp)
	authed.GET("/apps/:id", app.GetApp)
	authed.PATCH("/apps/:id", app.UpdateApp)
	authed.DELETE("/apps/:id", app.DeleteApp)
	authed.POST("/apps/:id/deploy", app.DeployApp)
	authed.GET("/deployments/:id", app.GetDeployment)
	authed.POST("/user/token", app.StoreUserToken)
	authed.DELETE("/user/token", app.DeleteUserToken)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"message": "Route not found"})
	})
}
