package agent

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fmuoria/resume-matcher/internal/export"
	"github.com/fmuoria/resume-matcher/internal/history"
	"github.com/fmuoria/resume-matcher/internal/ingestion"
	"github.com/fmuoria/resume-matcher/internal/models"
	"github.com/fmuoria/resume-matcher/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubExtractor returns canned text keyed by file base name
type stubExtractor struct {
	texts map[string]string
}

func (s *stubExtractor) Extract(path string, _ models.Format) (string, error) {
	if text, ok := s.texts[filepath.Base(path)]; ok {
		return text, nil
	}
	return "", &ingestion.ExtractionError{Path: path, Message: "no text could be extracted"}
}

// stubScorer returns canned scores keyed by resume text
type stubScorer struct {
	scores map[string]int
	err    error
	block  bool

	mu    sync.Mutex
	calls int
}

func (s *stubScorer) Name() string { return "Stub" }

func (s *stubScorer) Fields() []models.AnalysisField {
	return []models.AnalysisField{models.FieldSimilarity}
}

func (s *stubScorer) Score(ctx context.Context, resumeText, _ string) (models.Assessment, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return models.Assessment{}, ctx.Err()
	}
	if s.err != nil {
		return models.Assessment{}, s.err
	}
	return models.Assessment{Score: s.scores[resumeText], Analysis: models.Analysis{Similarity: "stub"}}, nil
}

type fixture struct {
	agent   *Agent
	uploads string
	root    string
}

func newFixture(t *testing.T, extractor Extractor, scorer scoring.Scorer) *fixture {
	t.Helper()
	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	logger := zap.NewNop()

	store := history.NewStore(filepath.Join(root, "data"), logger)
	store.Load()

	a := New(Options{
		Extractor: extractor,
		Scorer:    scorer,
		Expander:  ingestion.NewArchiveExpander(ingestion.NewFileHandler(uploads), logger),
		Reports:   export.NewReportWriter(filepath.Join(root, "output"), filepath.Join(root, "data")),
		History:   store,
		Logger:    logger,
	})
	return &fixture{agent: a, uploads: uploads, root: root}
}

func writeZip(t *testing.T, dir string, entries map[string]string, order []string) string {
	t.Helper()
	path := filepath.Join(dir, "batch.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(entries[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestRunBatch_MixedOutcomes(t *testing.T) {
	extractor := &stubExtractor{texts: map[string]string{"3_carol.docx": "carol resume"}}
	scorer := &stubScorer{scores: map[string]int{"carol resume": 60}}
	fx := newFixture(t, extractor, scorer)

	archive := writeZip(t, t.TempDir(), map[string]string{
		"1_alice.pdf":  "scanned image",
		"2_photo.png":  "png bytes",
		"3_carol.docx": "docx bytes",
	}, []string{"1_alice.pdf", "2_photo.png", "3_carol.docx"})

	result, err := fx.agent.RunBatch(context.Background(), BatchRequest{
		ArchivePath:    archive,
		JobDescription: "Go developer",
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	alice := result.Results[0]
	assert.Equal(t, "1_alice.pdf", alice.Filename)
	assert.True(t, strings.HasPrefix(alice.Error, "File parse error: "), alice.Error)
	assert.False(t, alice.Score.Valid)
	assert.Empty(t, alice.Verdict)

	carol := result.Results[1]
	assert.Equal(t, "3_carol.docx", carol.Filename)
	assert.Equal(t, models.NewScore(60), carol.Score)
	assert.Equal(t, models.VerdictReject, carol.Verdict)
	assert.Empty(t, carol.Error)

	assert.True(t, export.ValidID(result.ReportID))
	assert.Equal(t, export.DownloadURL(result.ReportID), result.ReportURL)

	path, err := fx.agent.Reports().ReportPath(result.ReportID)
	require.NoError(t, err)
	assert.FileExists(t, path)

	details, err := fx.agent.Reports().LoadDetails(result.ReportID)
	require.NoError(t, err)
	assert.Equal(t, result.Results, details)

	entries := fx.agent.History().List()
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultJobTitle, entries[0].JobTitle)
	assert.Equal(t, 2, entries[0].ResumesProcessed)
	assert.Equal(t, result.ReportID, entries[0].ReportID)

	_, err = os.Stat(archive)
	assert.True(t, os.IsNotExist(err), "uploaded archive should be removed")
	scratch, err := os.ReadDir(fx.uploads)
	require.NoError(t, err)
	assert.Empty(t, scratch, "scratch directory should be removed")
}

func TestRunBatch_NoEligibleFiles(t *testing.T) {
	fx := newFixture(t, &stubExtractor{}, &stubScorer{})
	archive := writeZip(t, t.TempDir(), map[string]string{
		"notes.txt": "hello",
		"logo.png":  "png",
	}, []string{"notes.txt", "logo.png"})

	_, err := fx.agent.RunBatch(context.Background(), BatchRequest{ArchivePath: archive, JobDescription: "jd"})

	var noFiles *ingestion.NoEligibleFilesError
	require.True(t, errors.As(err, &noFiles))
	assert.Equal(t, 2, noFiles.TotalFiles)
	assert.Empty(t, fx.agent.History().List())

	_, err = os.Stat(archive)
	assert.True(t, os.IsNotExist(err))
}

func TestRunBatch_JobTitle(t *testing.T) {
	fx := newFixture(t, &stubExtractor{texts: map[string]string{"a.pdf": "a"}}, &stubScorer{scores: map[string]int{"a": 80}})
	archive := writeZip(t, t.TempDir(), map[string]string{"a.pdf": "x"}, []string{"a.pdf"})

	_, err := fx.agent.RunBatch(context.Background(), BatchRequest{
		ArchivePath:    archive,
		JobDescription: "jd",
		JobTitle:       "  Platform Engineer ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Platform Engineer", fx.agent.History().List()[0].JobTitle)
}

func TestProcessFiles_Idempotent(t *testing.T) {
	extractor := &stubExtractor{texts: map[string]string{"a.pdf": "a", "b.pdf": "b"}}
	scorer := &stubScorer{scores: map[string]int{"a": 76, "b": 75}}
	fx := newFixture(t, extractor, scorer)

	files := []models.ResumeFile{
		{Path: "/tmp/a.pdf", RelativePath: "a.pdf", Format: models.FormatPDF},
		{Path: "/tmp/missing.pdf", RelativePath: "missing.pdf", Format: models.FormatPDF},
		{Path: "/tmp/b.pdf", RelativePath: "b.pdf", Format: models.FormatPDF},
	}

	first := fx.agent.ProcessFiles(context.Background(), files, "jd")
	second := fx.agent.ProcessFiles(context.Background(), files, "jd")

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, models.VerdictShortlist, first[0].Verdict)
	assert.True(t, first[1].Failed())
	assert.Equal(t, models.VerdictReject, first[2].Verdict)
}

func TestProcessFiles_ScorerErrors(t *testing.T) {
	files := []models.ResumeFile{{Path: "/tmp/a.pdf", RelativePath: "a.pdf", Format: models.FormatPDF}}
	extractor := &stubExtractor{texts: map[string]string{"a.pdf": "a"}}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "plain error", err: errors.New("boom"), want: "Stub error: boom"},
		{name: "backend error", err: &scoring.BackendError{Backend: "Gemini", Message: "request failed"}, want: "Gemini error: request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, extractor, &stubScorer{err: tt.err})
			rows := fx.agent.ProcessFiles(context.Background(), files, "jd")
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Error)
			assert.False(t, rows[0].Score.Valid)
		})
	}
}

func TestProcessFiles_ScorerTimeout(t *testing.T) {
	fx := newFixture(t, &stubExtractor{texts: map[string]string{"a.pdf": "a"}}, &stubScorer{block: true})
	fx.agent.timeout = 20 * time.Millisecond

	rows := fx.agent.ProcessFiles(context.Background(), []models.ResumeFile{
		{Path: "/tmp/a.pdf", RelativePath: "a.pdf", Format: models.FormatPDF},
	}, "jd")

	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Error, "deadline exceeded")
}

func TestProcessFiles_Cancelled(t *testing.T) {
	scorer := &stubScorer{scores: map[string]int{"a": 90}}
	fx := newFixture(t, &stubExtractor{texts: map[string]string{"a.pdf": "a"}}, scorer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := fx.agent.ProcessFiles(ctx, []models.ResumeFile{
		{Path: "/tmp/a.pdf", RelativePath: "a.pdf", Format: models.FormatPDF},
	}, "jd")

	require.Len(t, rows, 1)
	assert.True(t, strings.HasPrefix(rows[0].Error, "Batch cancelled"))
	assert.Zero(t, scorer.calls)
}

func TestProcessFiles_Progress(t *testing.T) {
	fx := newFixture(t, &stubExtractor{}, &stubScorer{})

	var seen []string
	fx.agent.SetProgressCallback(func(current, total int, filename string) {
		assert.Equal(t, 2, total)
		seen = append(seen, filename)
	})

	fx.agent.ProcessFiles(context.Background(), []models.ResumeFile{
		{Path: "/x/a.pdf", RelativePath: "a.pdf", Format: models.FormatPDF},
		{Path: "/x/b.pdf", RelativePath: "b.pdf", Format: models.FormatPDF},
	}, "jd")

	assert.Equal(t, []string{"a.pdf", "b.pdf"}, seen)
}

func TestMatch(t *testing.T) {
	dir := t.TempDir()
	resume := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF"), 0644))

	fx := newFixture(t, &stubExtractor{texts: map[string]string{"cv.pdf": "strong resume"}}, &stubScorer{scores: map[string]int{"strong resume": 90}})

	resp, err := fx.agent.Match(context.Background(), nil, resume, "jd")
	require.NoError(t, err)
	assert.Equal(t, 90, resp.Score)
	assert.Equal(t, models.VerdictShortlist, resp.Verdict)

	_, err = fx.agent.Match(context.Background(), nil, filepath.Join(dir, "cv.png"), "jd")
	var extractErr *ingestion.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.True(t, extractErr.Unsupported)
}
