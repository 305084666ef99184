package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/deploydeck/controlplane/internal/api"
	"github.com/deploydeck/controlplane/internal/config"
	"github.com/deploydeck/controlplane/internal/cryptox"
	"github.com/deploydeck/controlplane/internal/data"
	"github.com/deploydeck/controlplane/internal/dispatch"
	"github.com/deploydeck/controlplane/internal/middleware"
	"github.com/deploydeck/controlplane/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	pool, err := data.InitializeDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer pool.Close()

	cipher, err := cryptox.New(cfg.TokenEncryptionKey)
	if err != nil {
		// Token storage and decryption fail per-request until fixed.
		logger.Error("CRITICAL: token cipher unavailable", "error", err)
	}

	var dispatcher dispatch.Dispatcher
	if cfg.WorkflowConfigured() {
		dispatcher = dispatch.NewGithubDispatcher(cfg.GithubToken, cfg.RepoOwner, cfg.RepoName)
	}

	corsConfig := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"OPTIONS", "POST", "GET", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-Id", "X-Deployment-Secret", "X-Github-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(cors.New(corsConfig))

	api.InitializeApp(router, &api.App{
		Cfg:        cfg,
		Store:      store.NewPostgres(pool),
		Cipher:     cipher,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	logger.Info("starting server", "port", cfg.Port)
	if err := router.Run("0.0.0.0:" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
