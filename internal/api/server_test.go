package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fmuoria/resume-matcher/internal/agent"
	"github.com/fmuoria/resume-matcher/internal/export"
	"github.com/fmuoria/resume-matcher/internal/history"
	"github.com/fmuoria/resume-matcher/internal/ingestion"
	"github.com/fmuoria/resume-matcher/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fileExtractor treats every upload as plain text; content starting with
// FAIL is an extraction failure
type fileExtractor struct{}

func (fileExtractor) Extract(path string, _ models.Format) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "FAIL") {
		return "", &ingestion.ExtractionError{Path: path, Message: "no text could be extracted"}
	}
	return text, nil
}

type fixedScorer struct {
	name   string
	scores map[string]int
}

func (s *fixedScorer) Name() string { return s.name }

func (s *fixedScorer) Fields() []models.AnalysisField {
	return []models.AnalysisField{models.FieldKeyStrengths, models.FieldMissingSkills}
}

func (s *fixedScorer) Score(_ context.Context, resumeText, _ string) (models.Assessment, error) {
	return models.Assessment{
		Score:    s.scores[resumeText],
		Analysis: models.Analysis{KeyStrengths: "• Go", MissingSkills: "• AWS"},
	}, nil
}

type testServer struct {
	handler http.Handler
	uploads string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	logger := zap.NewNop()
	uploads := filepath.Join(root, "uploads")
	files := ingestion.NewFileHandler(uploads)

	store := history.NewStore(filepath.Join(root, "data"), logger)
	store.Load()

	a := agent.New(agent.Options{
		Extractor:   fileExtractor{},
		Scorer:      &fixedScorer{name: "Stub", scores: map[string]int{"strong resume": 90, "carol resume": 60}},
		BasicScorer: &fixedScorer{name: "Similarity", scores: map[string]int{"strong resume": 40}},
		Expander:    ingestion.NewArchiveExpander(files, logger),
		Reports:     export.NewReportWriter(filepath.Join(root, "output"), filepath.Join(root, "data")),
		History:     store,
		Logger:      logger,
	})

	srv := NewServer(a, files, logger, Options{MaxUploadBytes: 8 << 20, Version: "test"})
	return &testServer{handler: srv.Router(), uploads: uploads}
}

type part struct {
	field    string
	filename string
	content  []byte
}

func multipartRequest(t *testing.T, path string, parts []part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, mw.WriteField(p.field, string(p.content)))
			continue
		}
		w, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func zipBytes(t *testing.T, entries [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(e[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestMatch(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/match", []part{
		{field: "resume", filename: "cv.pdf", content: []byte("strong resume")},
		{field: "jd_text", content: []byte("Senior Go developer")},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.MatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 90, resp.Score)
	assert.Equal(t, models.VerdictShortlist, resp.Verdict)
	assert.Equal(t, "• Go", resp.KeyStrengths)
	assert.Equal(t, "• AWS", resp.MissingSkills)

	leftovers, err := os.ReadDir(ts.uploads)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestMatch_JobDescriptionFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/match", []part{
		{field: "resume", filename: "cv.docx", content: []byte("strong resume")},
		{field: "job_description", filename: "jd.txt", content: []byte("Go developer")},
	}))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMatchBasic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/match-basic", []part{
		{field: "resume", filename: "cv.pdf", content: []byte("strong resume")},
		{field: "jd_text", content: []byte("Go developer")},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.MatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.Score)
	assert.Equal(t, models.VerdictReject, resp.Verdict)
}

func TestMatch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		parts  []part
		status int
		want   string
	}{
		{
			name:   "missing resume",
			parts:  []part{{field: "jd_text", content: []byte("jd")}},
			status: http.StatusBadRequest,
			want:   "Resume not uploaded",
		},
		{
			name:   "missing job description",
			parts:  []part{{field: "resume", filename: "cv.pdf", content: []byte("strong resume")}},
			status: http.StatusBadRequest,
			want:   "Job description is required",
		},
		{
			name: "unsupported resume format",
			parts: []part{
				{field: "resume", filename: "cv.png", content: []byte("png")},
				{field: "jd_text", content: []byte("jd")},
			},
			status: http.StatusBadRequest,
			want:   "unsupported file type",
		},
		{
			name: "extraction failure",
			parts: []part{
				{field: "resume", filename: "cv.pdf", content: []byte("FAIL scanned")},
				{field: "jd_text", content: []byte("jd")},
			},
			status: http.StatusInternalServerError,
			want:   "Failed to extract text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(multipartRequest(t, "/match", tt.parts))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeError(t, rec).Error, tt.want)
		})
	}
}

func TestMatch_NotMultipart(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(`{"resume":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkMatch(t *testing.T) {
	ts := newTestServer(t)
	archive := zipBytes(t, [][2]string{
		{"1_alice.pdf", "FAIL scanned"},
		{"2_photo.png", "png"},
		{"3_carol.docx", "carol resume"},
	})

	rec := ts.do(multipartRequest(t, "/bulk-match", []part{
		{field: "resumes_zip", filename: "batch.zip", content: archive},
		{field: "jd_text", content: []byte("Go developer")},
		{field: "job_title", content: []byte("Backend Engineer")},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Results, 2)
	assert.Equal(t, "1_alice.pdf", result.Results[0].Filename)
	assert.True(t, strings.HasPrefix(result.Results[0].Error, "File parse error: "))
	assert.False(t, result.Results[0].Score.Valid)
	assert.Equal(t, "3_carol.docx", result.Results[1].Filename)
	assert.Equal(t, 60, result.Results[1].Score.Value)
	assert.Equal(t, models.VerdictReject, result.Results[1].Verdict)
	assert.Equal(t, "/download/"+result.ReportID+".xlsx", result.ReportURL)

	download := ts.do(httptest.NewRequest(http.MethodGet, result.ReportURL, nil))
	require.Equal(t, http.StatusOK, download.Code)
	assert.Equal(t, xlsxContentType, download.Header().Get("Content-Type"))
	assert.Contains(t, download.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(download.Body.Bytes(), []byte("PK")))

	details := ts.do(httptest.NewRequest(http.MethodGet, "/bulk-details/"+result.ReportID, nil))
	require.Equal(t, http.StatusOK, details.Code)
	var rows []models.ResultRow
	require.NoError(t, json.Unmarshal(details.Body.Bytes(), &rows))
	assert.Equal(t, result.Results, rows)

	recents := ts.do(httptest.NewRequest(http.MethodGet, "/bulk-recents", nil))
	require.Equal(t, http.StatusOK, recents.Code)
	var entries []models.HistoryEntry
	require.NoError(t, json.Unmarshal(recents.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Backend Engineer", entries[0].JobTitle)
	assert.Equal(t, result.ReportID, entries[0].ReportID)
	assert.Equal(t, 2, entries[0].ResumesProcessed)
}

func TestBulkMatch_NoEligibleFiles(t *testing.T) {
	ts := newTestServer(t)
	archive := zipBytes(t, [][2]string{
		{"readme.txt", "hello"},
		{"img/logo.png", "png"},
		{"__MACOSX/._a.pdf", "fork"},
	})

	rec := ts.do(multipartRequest(t, "/bulk-match", []part{
		{field: "resumes_zip", filename: "batch.zip", content: archive},
		{field: "jd_text", content: []byte("Go developer")},
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.NotEmpty(t, body.Error)
	require.NotNil(t, body.Debug)
	assert.Equal(t, 3, body.Debug.TotalFiles)
	assert.Equal(t, []string{"pdf", "png", "txt"}, body.Debug.FileTypes)
	assert.Len(t, body.Debug.Filenames, 3)
}

func TestBulkMatch_InputErrors(t *testing.T) {
	tests := []struct {
		name  string
		parts []part
		want  string
	}{
		{
			name:  "missing zip",
			parts: []part{{field: "jd_text", content: []byte("jd")}},
			want:  "ZIP file not uploaded",
		},
		{
			name:  "missing job description",
			parts: []part{{field: "resumes_zip", filename: "batch.zip", content: []byte("x")}},
			want:  "Job description is required",
		},
		{
			name: "corrupt zip",
			parts: []part{
				{field: "resumes_zip", filename: "batch.zip", content: []byte("not a zip")},
				{field: "jd_text", content: []byte("jd")},
			},
			want: "archive error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(multipartRequest(t, "/bulk-match", tt.parts))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec).Error, tt.want)
		})
	}
}

func TestDownloadAndDetails_NotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/download/bulk_report_123.xlsx", "/download/secret.txt", "/bulk-details/bulk_report_123", "/bulk-details/history"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRecents_Empty(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/bulk-recents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHealthRootAndCORS(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Resume Matcher")

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodOptions, "/bulk-match", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
