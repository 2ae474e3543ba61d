package llm

import (
	"context"
	"testing"

	vertex "cloud.google.com/go/vertexai/genai"
	"github.com/fmuoria/resume-matcher/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), config.GeminiConfig{APIKey: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key is required")
}

func TestNewVertexAIClient_RequiresProject(t *testing.T) {
	_, err := NewVertexAIClient(context.Background(), config.VertexConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project is required")
}

func TestNewVertexAIClient_MissingCredentialsFile(t *testing.T) {
	_, err := NewVertexAIClient(context.Background(), config.VertexConfig{
		Project:         "demo",
		CredentialsFile: "/nonexistent/creds.json",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read credentials file")
}

func TestUninitializedClients(t *testing.T) {
	var g *GeminiClient
	_, err := g.GenerateContent(context.Background(), "hello")
	assert.Error(t, err)
	assert.Empty(t, g.Model())
	assert.NoError(t, g.Close())

	var v *VertexAIClient
	_, err = v.GenerateContent(context.Background(), "hello")
	assert.Error(t, err)
	assert.NoError(t, v.Close())
}

func TestGeminiResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			nil,
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "MATCH_SCORE: 80\n"}, nil, {Text: "Key Strengths: Go"}}}},
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "ignored"}}}},
		},
	}

	text, err := geminiResponseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "MATCH_SCORE: 80\nKey Strengths: Go", text)

	_, err = geminiResponseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
	_, err = geminiResponseText(nil)
	assert.Error(t, err)
}

func TestVertexResponseText(t *testing.T) {
	resp := &vertex.GenerateContentResponse{
		Candidates: []*vertex.Candidate{{
			Content: &vertex.Content{Parts: []vertex.Part{vertex.Text("MATCH_SCORE: 55 "), vertex.Text("\nMissing Skills: AWS")}},
		}},
	}

	text, err := vertexResponseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "MATCH_SCORE: 55 \nMissing Skills: AWS", text)

	_, err = vertexResponseText(&vertex.GenerateContentResponse{})
	assert.Error(t, err)
	_, err = vertexResponseText(&vertex.GenerateContentResponse{Candidates: []*vertex.Candidate{{}}})
	assert.Error(t, err)
}
