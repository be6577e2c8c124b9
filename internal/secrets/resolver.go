package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Resolver reads secret payloads from Google Secret Manager.
type Resolver struct {
	client    *secretmanager.Client
	projectID string
}

func NewResolver(ctx context.Context, projectID string) (*Resolver, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project ID is required to resolve secrets")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &Resolver{client: client, projectID: projectID}, nil
}

// Get returns the latest version of name. A fully-qualified resource name
// (projects/.../secrets/...) is used as given.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	result, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: VersionName(r.projectID, name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(result.GetPayload().GetData())), nil
}

func (r *Resolver) Close() error {
	return r.client.Close()
}

// VersionName expands a short secret name to its latest-version resource name.
func VersionName(projectID, name string) string {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name
		}
		return name + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, name)
}
