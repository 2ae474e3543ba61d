package scoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/fmuoria/resume-matcher/internal/logger"
	"github.com/fmuoria/resume-matcher/internal/models"
	"go.uber.org/zap"
)

const (
	defaultMaxLogLength = 200

	NoKeyStrengths  = "No key strengths identified"
	NoMissingSkills = "No missing skills identified"
)

// Generator is a hosted language model that answers a prompt with text
type Generator interface {
	Name() string
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

// LLMScorer asks a hosted model for a match score and commentary
type LLMScorer struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

// NewLLMScorer creates a scorer backed by generator
func NewLLMScorer(generator Generator, logger *zap.Logger) *LLMScorer {
	return &LLMScorer{
		generator: generator,
		logger:    logger,
		maxLogLen: defaultMaxLogLength,
	}
}

func (s *LLMScorer) Name() string {
	return s.generator.Name()
}

func (s *LLMScorer) Fields() []models.AnalysisField {
	return []models.AnalysisField{models.FieldKeyStrengths, models.FieldMissingSkills}
}

// Score sends the resume and job description to the model and parses its reply
func (s *LLMScorer) Score(ctx context.Context, resumeText, jdText string) (models.Assessment, error) {
	prompt := BuildPrompt(resumeText, jdText)

	s.logger.Debug("generate content request",
		zap.String("backend", s.Name()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return models.Assessment{}, &BackendError{Backend: s.Name(), Message: "request failed", Cause: err}
	}

	s.logger.Debug("generate content response",
		zap.String("backend", s.Name()),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	assessment, err := ParseReply(raw)
	if err != nil {
		return models.Assessment{}, &BackendError{Backend: s.Name(), Message: "unusable reply", Cause: err}
	}

	return assessment, nil
}

// Close releases the underlying client when it holds resources
func (s *LLMScorer) Close() error {
	if c, ok := s.generator.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BuildPrompt fills the embedded prompt template
func BuildPrompt(resumeText, jdText string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job Description:\n{{JOB_DESCRIPTION}}\n\nResume:\n{{RESUME}}\n\nMATCH_SCORE:"
	}
	// one pass, so placeholders inside the documents stay literal
	return strings.NewReplacer(
		"{{JOB_DESCRIPTION}}", strings.TrimSpace(jdText),
		"{{RESUME}}", strings.TrimSpace(resumeText),
	).Replace(template)
}

var (
	scorePattern   = regexp.MustCompile(`(?i)MATCH_SCORE[*_\s]*[:=]?[*_\s]*(-?\d+(?:\.\d+)?)`)
	headingPattern = regexp.MustCompile(`^#+\s*`)
	bulletPattern  = regexp.MustCompile(`^(?:[-*+•]|\d+[.)])\s+(.*)$`)
	italicPattern  = regexp.MustCompile(`\*([^*\n]+)\*`)
)

type section int

const (
	sectionNone section = iota
	sectionStrengths
	sectionMissing
	sectionRecommendations
)

var sectionHeaders = []struct {
	title   string
	section section
}{
	{"key strengths", sectionStrengths},
	{"missing skills", sectionMissing},
	{"recommendations", sectionRecommendations},
}

// ParseReply extracts the MATCH_SCORE value and the Key Strengths and
// Missing Skills sections from a model reply. Recommendations end the
// Missing Skills section and are not kept.
func ParseReply(raw string) (models.Assessment, error) {
	m := scorePattern.FindStringSubmatch(raw)
	if m == nil {
		return models.Assessment{}, errors.New("reply has no MATCH_SCORE marker")
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.Assessment{}, fmt.Errorf("parse MATCH_SCORE %q: %w", m[1], err)
	}

	sections := splitSections(raw)

	strengths := cleanSection(sections[sectionStrengths])
	if strengths == "" {
		strengths = NoKeyStrengths
	}
	missing := cleanSection(sections[sectionMissing])
	if missing == "" {
		missing = NoMissingSkills
	}

	return models.Assessment{
		Score: models.ClampScore(int(math.Round(value))),
		Analysis: models.Analysis{
			KeyStrengths:  strengths,
			MissingSkills: missing,
		},
	}, nil
}

func splitSections(raw string) map[section][]string {
	sections := make(map[section][]string)
	current := sectionNone

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if scorePattern.MatchString(line) {
			continue
		}
		if sec, rest, ok := matchHeader(line); ok {
			current = sec
			if rest != "" {
				sections[current] = append(sections[current], rest)
			}
			continue
		}
		sections[current] = append(sections[current], line)
	}

	return sections
}

func matchHeader(line string) (section, string, bool) {
	trimmed := strings.TrimLeft(line, "#*_ \t")
	for _, h := range sectionHeaders {
		n := len(h.title)
		if len(trimmed) >= n && strings.EqualFold(trimmed[:n], h.title) {
			rest := strings.TrimLeft(trimmed[n:], "*_: \t")
			return h.section, strings.TrimSpace(rest), true
		}
	}
	return sectionNone, "", false
}

// cleanSection drops markdown markup and normalizes list items to "• " bullets
func cleanSection(lines []string) string {
	var out []string
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}
		l = headingPattern.ReplaceAllString(l, "")

		if b := bulletPattern.FindStringSubmatch(l); b != nil {
			item := strings.TrimSpace(stripEmphasis(b[1]))
			if item == "" {
				continue
			}
			out = append(out, "• "+item)
			continue
		}

		if l = strings.TrimSpace(stripEmphasis(l)); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func stripEmphasis(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")
	return italicPattern.ReplaceAllString(s, "$1")
}
