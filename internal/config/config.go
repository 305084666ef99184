package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all process configuration. It is built once at startup and
// passed explicitly to the components that need it.
type Config struct {
	Port    string
	GinMode string

	DatabaseURL string

	// TokenEncryptionKey is the hex-encoded 32-byte AES-256 key used to
	// encrypt stored GitHub tokens.
	TokenEncryptionKey string

	// DeploymentSecret authenticates status callbacks from the CI system.
	DeploymentSecret string

	// RepoOwner/RepoName identify the platform's own automation repository,
	// the one whose workflows perform the actual provisioning. Not the
	// user's repo.
	RepoOwner   string
	RepoName    string
	GithubToken string

	AllowedOrigins []string
}

// Load reads configuration from the environment. A local .env file is
// loaded first if present. Missing critical settings are logged but do not
// abort startup; the operations that need them fail per-request instead.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = "release"
	}

	origins := []string{"http://localhost:3000"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	cfg := &Config{
		Port:               port,
		GinMode:            ginMode,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		TokenEncryptionKey: os.Getenv("TOKEN_ENCRYPTION_KEY"),
		DeploymentSecret:   os.Getenv("DEPLOYMENT_SECRET"),
		RepoOwner:          os.Getenv("GITHUB_REPO_OWNER"),
		RepoName:           os.Getenv("GITHUB_REPO_NAME"),
		GithubToken:        os.Getenv("GITHUB_TOKEN"),
		AllowedOrigins:     origins,
	}

	if cfg.TokenEncryptionKey == "" {
		slog.Error("CRITICAL: TOKEN_ENCRYPTION_KEY environment variable is not set")
	}
	if cfg.DeploymentSecret == "" {
		slog.Error("CRITICAL: DEPLOYMENT_SECRET environment variable is not set")
	}
	if cfg.RepoOwner == "" || cfg.RepoName == "" {
		slog.Error("CRITICAL: GITHUB_REPO_OWNER and GITHUB_REPO_NAME environment variables must be set")
	}

	return cfg
}

// WorkflowConfigured reports whether the CI dispatch target is set.
func (c *Config) WorkflowConfigured() bool {
	return c.RepoOwner != "" && c.RepoName != ""
}
