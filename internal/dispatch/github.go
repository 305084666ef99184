package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// Workflow files in the platform automation repository. Both are dispatched
// on the repository's main branch.
const (
	deployWorkflow  = "deploy-user-app.yml"
	destroyWorkflow = "destroy-user-app.yml"
	workflowRef     = "main"
)

// DeployInput carries everything a deploy workflow run needs.
type DeployInput struct {
	AppID        string
	RepoURL      string
	Branch       string
	DeploymentID string
	EnvVars      map[string]string

	// UserRepoToken grants the workflow read access to the user's
	// repository. Empty for public repositories.
	UserRepoToken string
}

// Dispatcher triggers workflow runs in the external CI system. The actual
// provisioning happens asynchronously; outcomes come back through the
// deployment status callback.
type Dispatcher interface {
	DeployApp(ctx context.Context, in DeployInput) error
	DestroyApp(ctx context.Context, appID string) error
}

type GithubDispatcher struct {
	client *gh.Client
	owner  string
	repo   string
}

// NewGithubDispatcher builds a dispatcher for the given automation
// repository, authenticated with the platform's own token.
func NewGithubDispatcher(token, owner, repo string) *GithubDispatcher {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &GithubDispatcher{
		client: gh.NewClient(tc),
		owner:  owner,
		repo:   repo,
	}
}

func (d *GithubDispatcher) DeployApp(ctx context.Context, in DeployInput) error {
	inputs, err := deployInputs(in)
	if err != nil {
		return err
	}

	_, err = d.client.Actions.CreateWorkflowDispatchEventByFileName(
		ctx, d.owner, d.repo, deployWorkflow,
		gh.CreateWorkflowDispatchEventRequest{
			Ref:    workflowRef,
			Inputs: inputs,
		})
	if err != nil {
		return fmt.Errorf("dispatch deploy workflow: %w", err)
	}
	return nil
}

func (d *GithubDispatcher) DestroyApp(ctx context.Context, appID string) error {
	_, err := d.client.Actions.CreateWorkflowDispatchEventByFileName(
		ctx, d.owner, d.repo, destroyWorkflow,
		gh.CreateWorkflowDispatchEventRequest{
			Ref: workflowRef,
			Inputs: map[string]interface{}{
				"app_id": appID,
			},
		})
	if err != nil {
		return fmt.Errorf("dispatch destroy workflow: %w", err)
	}
	return nil
}

// deployInputs flattens a DeployInput into workflow dispatch inputs.
// Workflow inputs are strings, so env vars travel JSON-serialized.
func deployInputs(in DeployInput) (map[string]interface{}, error) {
	envVars := in.EnvVars
	if envVars == nil {
		envVars = map[string]string{}
	}
	serialized, err := json.Marshal(envVars)
	if err != nil {
		return nil, fmt.Errorf("serialize env vars: %w", err)
	}

	return map[string]interface{}{
		"app_id":          in.AppID,
		"repo_url":        in.RepoURL,
		"branch":          in.Branch,
		"deployment_id":   in.DeploymentID,
		"env_vars":        string(serialized),
		"user_repo_token": in.UserRepoToken,
	}, nil
}
