package scoring

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode"

	"github.com/fmuoria/resume-matcher/internal/logger"
	"github.com/fmuoria/resume-matcher/internal/models"
	"go.uber.org/zap"
)

const similarityName = "Similarity"

// SimilarityScorer rates a resume by text similarity to the job description.
// With a command configured, the command is run with the resume and job
// description text file paths appended and must print a 0..1 fraction on its
// first stdout line. Without one, a term-frequency cosine similarity is used.
type SimilarityScorer struct {
	command []string
	logger  *zap.Logger
}

func NewSimilarityScorer(command []string, logger *zap.Logger) *SimilarityScorer {
	return &SimilarityScorer{command: command, logger: logger}
}

func (s *SimilarityScorer) Name() string {
	return similarityName
}

func (s *SimilarityScorer) Fields() []models.AnalysisField {
	return []models.AnalysisField{models.FieldSimilarity}
}

func (s *SimilarityScorer) Score(ctx context.Context, resumeText, jdText string) (models.Assessment, error) {
	var (
		fraction float64
		err      error
	)

	if len(s.command) == 0 {
		fraction = CosineSimilarity(resumeText, jdText)
	} else {
		fraction, err = s.runCommand(ctx, resumeText, jdText)
		if err != nil {
			return models.Assessment{}, err
		}
	}

	return models.Assessment{
		Score: models.ClampScore(int(math.Round(fraction * 100))),
		Analysis: models.Analysis{
			Similarity: strconv.FormatFloat(fraction, 'f', 4, 64),
		},
	}, nil
}

func (s *SimilarityScorer) runCommand(ctx context.Context, resumeText, jdText string) (float64, error) {
	resumePath, err := writeTemp("resume-*.txt", resumeText)
	if err != nil {
		return 0, &BackendError{Backend: similarityName, Message: "failed to write resume text", Cause: err}
	}
	defer os.Remove(resumePath)

	jdPath, err := writeTemp("jd-*.txt", jdText)
	if err != nil {
		return 0, &BackendError{Backend: similarityName, Message: "failed to write job description text", Cause: err}
	}
	defer os.Remove(jdPath)

	args := append(append([]string{}, s.command[1:]...), resumePath, jdPath)
	cmd := exec.CommandContext(ctx, s.command[0], args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.logger.Warn("similarity command failed",
			zap.Strings("command", s.command),
			zap.String("stderr", logger.TruncateForLog(stderr.String(), defaultMaxLogLength)),
			zap.Error(err),
		)
		return 0, &BackendError{Backend: similarityName, Message: "matching command failed", Cause: err}
	}

	fraction, err := parseFraction(stdout.String())
	if err != nil {
		return 0, &BackendError{Backend: similarityName, Message: "unusable command output", Cause: err}
	}
	return fraction, nil
}

func writeTemp(pattern, content string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// parseFraction reads the first non-empty line of output as a float
func parseFraction(output string) (float64, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", line, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("score %q is not a finite number", line)
		}
		return f, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("command printed no score")
}

// CosineSimilarity compares the term-frequency vectors of a and b
func CosineSimilarity(a, b string) float64 {
	va, vb := termFrequencies(a), termFrequencies(b)
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, x := range va {
		normA += x * x
		if y, ok := vb[term]; ok {
			dot += x * y
		}
	}
	for _, y := range vb {
		normB += y * y
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termFrequencies(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		tf[token]++
	}
	return tf
}
