package service

import (
	"context"
	"fmt"

	"audiotour/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretManagerService fetches secrets the process must not keep in plain
// environment files, currently just the OpenAI API key.
type SecretManagerService interface {
	GetOpenAIKey(ctx context.Context) (string, error)
	Close() error
}

type secretManagerService struct {
	client     *secretmanager.Client
	projectID  string
	secretName string
}

// NewSecretManagerService creates a Secret Manager client for the configured
// GCP project.
func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is not set")
	}

	var opts []option.ClientOption
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:     client,
		projectID:  cfg.GCPProjectID,
		secretName: cfg.OpenAISecretName,
	}, nil
}

// GetOpenAIKey reads the latest version of the configured OpenAI key secret.
func (s *secretManagerService) GetOpenAIKey(ctx context.Context) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, s.secretName)

	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("accessing secret %s: %w", resourceName, err)
	}
	return string(result.Payload.Data), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}
