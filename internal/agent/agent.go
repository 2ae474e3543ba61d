// Package agent drives resume scoring: single matches and batch runs over an
// uploaded archive, from extraction through report and history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fmuoria/resume-matcher/internal/export"
	"github.com/fmuoria/resume-matcher/internal/history"
	"github.com/fmuoria/resume-matcher/internal/ingestion"
	"github.com/fmuoria/resume-matcher/internal/models"
	"github.com/fmuoria/resume-matcher/internal/scoring"
	"go.uber.org/zap"
)

const (
	// DefaultJobTitle labels batch runs submitted without a job title
	DefaultJobTitle = "Untitled Job"

	historyDateLayout = "2006-01-02 15:04:05"
)

// ProgressCallback is called before each file of a batch is processed
type ProgressCallback func(current, total int, filename string)

// Extractor turns a document into plain text
type Extractor interface {
	Extract(path string, format models.Format) (string, error)
}

// Options wires the agent's collaborators
type Options struct {
	Extractor Extractor
	// Scorer is the configured backend
	Scorer scoring.Scorer
	// BasicScorer always scores by similarity; defaults to Scorer
	BasicScorer scoring.Scorer
	Expander    *ingestion.ArchiveExpander
	Reports     *export.ReportWriter
	History     *history.Store
	Logger      *zap.Logger
	// ScorerTimeout bounds each scorer call; zero means no limit
	ScorerTimeout time.Duration
}

// Agent orchestrates extraction, scoring and persistence
type Agent struct {
	extractor Extractor
	scorer    scoring.Scorer
	basic     scoring.Scorer
	expander  *ingestion.ArchiveExpander
	reports   *export.ReportWriter
	history   *history.Store
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time

	mu         sync.RWMutex
	progressCb ProgressCallback
}

// New creates an agent from opts
func New(opts Options) *Agent {
	basic := opts.BasicScorer
	if basic == nil {
		basic = opts.Scorer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Agent{
		extractor: opts.Extractor,
		scorer:    opts.Scorer,
		basic:     basic,
		expander:  opts.Expander,
		reports:   opts.Reports,
		history:   opts.History,
		logger:    logger,
		timeout:   opts.ScorerTimeout,
		now:       time.Now,
	}
}

// Scorer returns the configured scorer backend
func (a *Agent) Scorer() scoring.Scorer {
	return a.scorer
}

// BasicScorer returns the similarity scorer
func (a *Agent) BasicScorer() scoring.Scorer {
	return a.basic
}

// SetProgressCallback sets the progress callback function
func (a *Agent) SetProgressCallback(cb ProgressCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progressCb = cb
}

func (a *Agent) reportProgress(current, total int, filename string) {
	a.mu.RLock()
	cb := a.progressCb
	a.mu.RUnlock()

	if cb != nil {
		cb(current, total, filename)
	}
}

// ExtractDocument extracts the text of an uploaded document, detecting the
// format from its extension
func (a *Agent) ExtractDocument(path string) (string, error) {
	format, ok := models.FormatFromPath(path)
	if !ok {
		return "", &ingestion.ExtractionError{
			Path:        path,
			Message:     "unsupported file type, upload a PDF, DOCX or TXT file",
			Unsupported: true,
		}
	}
	return a.extractor.Extract(path, format)
}

// Match scores one resume against jdText with scorer, or with the configured
// backend when scorer is nil
func (a *Agent) Match(ctx context.Context, scorer scoring.Scorer, resumePath, jdText string) (models.MatchResponse, error) {
	if scorer == nil {
		scorer = a.scorer
	}

	resumeText, err := a.ExtractDocument(resumePath)
	if err != nil {
		return models.MatchResponse{}, err
	}

	assessment, err := a.score(ctx, scorer, resumeText, jdText)
	if err != nil {
		return models.MatchResponse{}, err
	}

	resp := models.NewMatchResponse(assessment)
	a.logger.Info("resume matched",
		zap.String("backend", scorer.Name()),
		zap.Int("score", resp.Score),
		zap.String("verdict", string(resp.Verdict)),
	)
	return resp, nil
}

func (a *Agent) score(ctx context.Context, scorer scoring.Scorer, resumeText, jdText string) (models.Assessment, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return scorer.Score(ctx, resumeText, jdText)
}

// ProcessFiles scores every file in order and returns one row per file. A
// failing file yields an error row; it never stops the run.
func (a *Agent) ProcessFiles(ctx context.Context, files []models.ResumeFile, jdText string) []models.ResultRow {
	rows := make([]models.ResultRow, 0, len(files))

	for i, file := range files {
		a.reportProgress(i+1, len(files), file.RelativePath)
		a.logger.Info("scoring resume",
			zap.Int("current", i+1),
			zap.Int("total", len(files)),
			zap.String("file", file.RelativePath),
		)

		rows = append(rows, a.processFile(ctx, file, jdText))
	}

	return rows
}

func (a *Agent) processFile(ctx context.Context, file models.ResumeFile, jdText string) models.ResultRow {
	row := models.ResultRow{Filename: file.RelativePath}

	if err := ctx.Err(); err != nil {
		row.Fail("Batch cancelled: " + err.Error())
		return row
	}

	text, err := a.extractor.Extract(file.Path, file.Format)
	if err != nil {
		a.logger.Warn("failed to extract resume", zap.String("file", file.RelativePath), zap.Error(err))
		row.Fail("File parse error: " + err.Error())
		return row
	}

	assessment, err := a.score(ctx, a.scorer, text, jdText)
	if err != nil {
		a.logger.Warn("failed to score resume", zap.String("file", file.RelativePath), zap.Error(err))
		row.Fail(scorerErrorMessage(a.scorer, err))
		return row
	}

	row.Succeed(assessment)
	return row
}

func scorerErrorMessage(scorer scoring.Scorer, err error) string {
	var backendErr *scoring.BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Error()
	}
	return fmt.Sprintf("%s error: %v", scorer.Name(), err)
}

// BatchRequest is one uploaded archive to score against a job description
type BatchRequest struct {
	ArchivePath    string
	JobDescription string
	JobTitle       string
}

// RunBatch expands the archive, scores every resume, writes the report and
// records the run in history. The uploaded archive and the scratch directory
// are removed whatever the outcome.
func (a *Agent) RunBatch(ctx context.Context, req BatchRequest) (*models.BatchResult, error) {
	var exp *ingestion.Expansion
	defer func() {
		a.expander.Cleanup(exp, req.ArchivePath)
	}()

	exp, err := a.expander.Expand(req.ArchivePath)
	if err != nil {
		return nil, err
	}

	jobTitle := strings.TrimSpace(req.JobTitle)
	if jobTitle == "" {
		jobTitle = DefaultJobTitle
	}

	start := a.now()
	rows := a.ProcessFiles(ctx, exp.Files, req.JobDescription)

	report, err := a.reports.Write(export.ReportMeta{
		JobTitle: jobTitle,
		Backend:  a.scorer.Name(),
		Fields:   a.scorer.Fields(),
	}, rows)
	if err != nil {
		return nil, err
	}

	entry := models.HistoryEntry{
		JobTitle:         jobTitle,
		Date:             a.now().Format(historyDateLayout),
		ReportID:         report.ID,
		ReportURL:        report.URL(),
		ResumesProcessed: len(rows),
	}
	if err := a.history.Record(entry); err != nil {
		a.logger.Error("failed to record batch history", zap.String("report_id", report.ID), zap.Error(err))
	}

	a.logger.Info("batch completed",
		zap.String("report_id", report.ID),
		zap.String("job_title", jobTitle),
		zap.Int("resumes", len(rows)),
		zap.Int("failed", countFailed(rows)),
		zap.Duration("elapsed", a.now().Sub(start)),
	)

	return &models.BatchResult{
		Results:   rows,
		ReportID:  report.ID,
		ReportURL: report.URL(),
	}, nil
}

// Reports exposes the report writer for download and detail lookups
func (a *Agent) Reports() *export.ReportWriter {
	return a.reports
}

// History exposes the history store
func (a *Agent) History() *history.Store {
	return a.history
}

func countFailed(rows []models.ResultRow) int {
	n := 0
	for _, r := range rows {
		if r.Failed() {
			n++
		}
	}
	return n
}
