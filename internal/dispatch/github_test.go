package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployInputs(t *testing.T) {
	inputs, err := deployInputs(DeployInput{
		AppID:         "app-1",
		RepoURL:       "owner/repo",
		Branch:        "main",
		DeploymentID:  "dep-1",
		EnvVars:       map[string]string{"DATABASE_URL": "postgres://x"},
		UserRepoToken: "ghp_token",
	})
	require.NoError(t, err)

	assert.Equal(t, "app-1", inputs["app_id"])
	assert.Equal(t, "owner/repo", inputs["repo_url"])
	assert.Equal(t, "main", inputs["branch"])
	assert.Equal(t, "dep-1", inputs["deployment_id"])
	assert.Equal(t, "ghp_token", inputs["user_repo_token"])

	var envVars map[string]string
	require.NoError(t, json.Unmarshal([]byte(inputs["env_vars"].(string)), &envVars))
	assert.Equal(t, map[string]string{"DATABASE_URL": "postgres://x"}, envVars)
}

func TestDeployInputs_NilEnvVars(t *testing.T) {
	inputs, err := deployInputs(DeployInput{AppID: "app-1"})
	require.NoError(t, err)

	assert.Equal(t, "{}", inputs["env_vars"])
	assert.Equal(t, "", inputs["user_repo_token"])
}
