package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/fmuoria/resume-matcher/internal/config"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	defaultVertexLocation = "us-central1"
	defaultVertexModel    = "gemini-1.5-flash"
	cloudPlatformScope    = "https://www.googleapis.com/auth/cloud-platform"
)

// VertexAIClient wraps the Vertex AI Gemini API
type VertexAIClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewVertexAIClient creates a Vertex AI client for the configured project.
// Without a credentials file Application Default Credentials are used.
func NewVertexAIClient(ctx context.Context, cfg config.VertexConfig) (*VertexAIClient, error) {
	project := strings.TrimSpace(cfg.Project)
	if project == "" {
		return nil, errors.New("vertex project is required")
	}

	location := cfg.Location
	if location == "" {
		location = defaultVertexLocation
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultVertexModel
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	client, err := genai.NewClient(ctx, project, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(2048)

	return &VertexAIClient{
		client:    client,
		model:     model,
		modelName: modelName,
	}, nil
}

// Name identifies the backend in row errors and reports
func (v *VertexAIClient) Name() string {
	return "Vertex AI"
}

// Model returns the configured model name
func (v *VertexAIClient) Model() string {
	if v == nil {
		return ""
	}
	return v.modelName
}

// GenerateContent sends a prompt to the model and returns the response text
func (v *VertexAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if v == nil || v.model == nil {
		return "", errors.New("vertex client is not initialized")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return vertexResponseText(resp)
}

func vertexResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no response candidates returned")
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return "", errors.New("response candidate has no content")
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("vertex returned empty response")
	}
	return output, nil
}

// Close closes the Vertex AI client
func (v *VertexAIClient) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}
