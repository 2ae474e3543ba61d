package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ShortlistThreshold is the score a resume must exceed to be shortlisted
const ShortlistThreshold = 75

// Format is a document format recognized by the text extractor
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// ResumeFormats is the allow-list of formats accepted for resumes
var ResumeFormats = []Format{FormatPDF, FormatDOCX}

// FormatFromPath derives the format from a file extension.
// The second return value is false when the extension is not recognized.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDOCX, true
	case ".txt":
		return FormatTXT, true
	default:
		return "", false
	}
}

// IsResumeFormat reports whether f is allowed for resumes
func IsResumeFormat(f Format) bool {
	for _, allowed := range ResumeFormats {
		if f == allowed {
			return true
		}
	}
	return false
}

// Verdict is the binary shortlist/reject label
type Verdict string

const (
	VerdictShortlist Verdict = "Shortlist"
	VerdictReject    Verdict = "Reject"
)

// VerdictFor derives the verdict from an integer score
func VerdictFor(score int) Verdict {
	if score > ShortlistThreshold {
		return VerdictShortlist
	}
	return VerdictReject
}

// Score is an optional 0-100 match score.
// It encodes as a JSON number when set and as an empty string when not.
type Score struct {
	Value int
	Valid bool
}

// NewScore returns a set score clamped to 0-100
func NewScore(v int) Score {
	return Score{Value: ClampScore(v), Valid: true}
}

// ClampScore limits v to the 0-100 range
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// String returns the score as text, or "" when unset
func (s Score) String() string {
	if !s.Valid {
		return ""
	}
	return strconv.Itoa(s.Value)
}

// MarshalJSON implements json.Marshaler
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte(`""`), nil
	}
	return []byte(strconv.Itoa(s.Value)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Score{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*s = Score{}
			return nil
		}
		v, err := strconv.Atoi(str)
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", str, err)
		}
		*s = NewScore(v)
		return nil
	}

	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid score %s: %w", data, err)
	}
	*s = NewScore(v)
	return nil
}

// ResumeFile is a candidate document discovered in a batch archive
type ResumeFile struct {
	Path         string `json:"path"`
	RelativePath string `json:"relative_path"`
	Format       Format `json:"format"`
}

// Analysis holds the structured commentary a scorer backend yields
type Analysis struct {
	Similarity    string `json:"similarity"`
	KeyStrengths  string `json:"keyStrengths"`
	MissingSkills string `json:"missingSkills"`
}

// Assessment is the outcome of one successful scorer call
type Assessment struct {
	Score    int
	Analysis Analysis
}

// ResultRow is the outcome of scoring one resume in a batch
type ResultRow struct {
	Filename      string  `json:"filename"`
	Score         Score   `json:"score"`
	Verdict       Verdict `json:"verdict"`
	Similarity    string  `json:"similarity"`
	KeyStrengths  string  `json:"keyStrengths"`
	MissingSkills string  `json:"missingSkills"`
	Error         string  `json:"error"`
}

// Succeed finalizes the row with a scored assessment
func (r *ResultRow) Succeed(a Assessment) {
	r.Score = NewScore(a.Score)
	r.Verdict = VerdictFor(r.Score.Value)
	r.Similarity = a.Analysis.Similarity
	r.KeyStrengths = a.Analysis.KeyStrengths
	r.MissingSkills = a.Analysis.MissingSkills
	r.Error = ""
}

// Fail finalizes the row with an error message, clearing any score fields
func (r *ResultRow) Fail(message string) {
	filename := r.Filename
	*r = ResultRow{Filename: filename, Error: message}
}

// Failed reports whether the row carries an error
func (r ResultRow) Failed() bool {
	return r.Error != ""
}

// AnalysisField identifies one backend-specific analysis column
type AnalysisField string

const (
	FieldSimilarity    AnalysisField = "similarity"
	FieldKeyStrengths  AnalysisField = "keyStrengths"
	FieldMissingSkills AnalysisField = "missingSkills"
)

// Header returns the spreadsheet column title for the field
func (f AnalysisField) Header() string {
	switch f {
	case FieldSimilarity:
		return "Similarity"
	case FieldKeyStrengths:
		return "Key Strengths"
	case FieldMissingSkills:
		return "Missing Skills"
	default:
		return string(f)
	}
}

// Value returns the row's value for the field
func (f AnalysisField) Value(r ResultRow) string {
	switch f {
	case FieldSimilarity:
		return r.Similarity
	case FieldKeyStrengths:
		return r.KeyStrengths
	case FieldMissingSkills:
		return r.MissingSkills
	default:
		return ""
	}
}

// HistoryEntry summarizes one completed batch run
type HistoryEntry struct {
	JobTitle         string `json:"jobTitle"`
	Date             string `json:"date"`
	ReportID         string `json:"reportId"`
	ReportURL        string `json:"reportUrl"`
	ResumesProcessed int    `json:"resumesProcessed"`
}

// MatchResponse is the result of scoring a single resume
type MatchResponse struct {
	Score         int     `json:"score"`
	Verdict       Verdict `json:"verdict"`
	Similarity    string  `json:"similarity,omitempty"`
	KeyStrengths  string  `json:"keyStrengths,omitempty"`
	MissingSkills string  `json:"missingSkills,omitempty"`
}

// NewMatchResponse builds a response from an assessment
func NewMatchResponse(a Assessment) MatchResponse {
	score := ClampScore(a.Score)
	return MatchResponse{
		Score:         score,
		Verdict:       VerdictFor(score),
		Similarity:    a.Analysis.Similarity,
		KeyStrengths:  a.Analysis.KeyStrengths,
		MissingSkills: a.Analysis.MissingSkills,
	}
}

// BatchResult is the outcome of one batch run
type BatchResult struct {
	Results   []ResultRow `json:"results"`
	ReportID  string      `json:"reportId"`
	ReportURL string      `json:"reportUrl"`
}
