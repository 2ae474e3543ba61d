// Package scoring rates a resume against a job description. Two kinds of
// backend exist: a text similarity scorer and hosted-model scorers whose
// free-text reply is parsed into a score and commentary.
package scoring

import (
	"context"
	"fmt"

	"github.com/fmuoria/resume-matcher/internal/config"
	"github.com/fmuoria/resume-matcher/internal/llm"
	"github.com/fmuoria/resume-matcher/internal/models"
	"go.uber.org/zap"
)

// Scorer evaluates one resume text against one job description text
type Scorer interface {
	// Name is the display name used in row errors and reports
	Name() string
	// Fields lists the analysis fields this backend populates
	Fields() []models.AnalysisField
	Score(ctx context.Context, resumeText, jdText string) (models.Assessment, error)
}

// New builds the scorer selected by cfg.Scorer.Backend. Hosted-model scorers
// hold a client that callers release with Close.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Scorer, error) {
	switch cfg.Scorer.Backend {
	case config.BackendSimilarity, "":
		return NewSimilarityScorer(cfg.Similarity.Command, logger), nil
	case config.BackendVertex:
		client, err := llm.NewVertexAIClient(ctx, cfg.Vertex)
		if err != nil {
			return nil, err
		}
		return NewLLMScorer(client, logger), nil
	case config.BackendGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return NewLLMScorer(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown scorer backend %q", cfg.Scorer.Backend)
	}
}
