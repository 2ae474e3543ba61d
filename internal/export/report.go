// Package export persists batch results as an xlsx report and a JSON sidecar
// that share one time-based identity.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fmuoria/resume-matcher/internal/models"
)

const (
	reportPrefix = "bulk_report_"
	detailsDir   = "bulk_details"

	maxReserveAttempts = 1000
)

var validID = regexp.MustCompile(`^bulk_report_\d+$`)

// ErrReportNotFound is returned when no report exists for an id
var ErrReportNotFound = errors.New("report not found")

// PersistenceError is returned when a report or its sidecar cannot be written
type PersistenceError struct {
	Message string
	Cause   error
}

func (e *PersistenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// ReportMeta describes the run a report belongs to
type ReportMeta struct {
	JobTitle string
	Backend  string
	Fields   []models.AnalysisField
}

// Report locates the files written for one batch run
type Report struct {
	ID          string
	XLSXPath    string
	DetailsPath string
}

// URL is the download path for the spreadsheet
func (r *Report) URL() string {
	return DownloadURL(r.ID)
}

// ReportWriter writes spreadsheets under outputDir and sidecars under
// dataDir/bulk_details
type ReportWriter struct {
	outputDir  string
	detailsDir string
	now        func() time.Time

	mu   sync.Mutex
	last int64
}

func NewReportWriter(outputDir, dataDir string) *ReportWriter {
	return &ReportWriter{
		outputDir:  outputDir,
		detailsDir: filepath.Join(dataDir, detailsDir),
		now:        time.Now,
	}
}

// NextID returns a bulk_report_<unix-millis> id that is strictly greater
// than every id this writer returned before, even within one millisecond.
func (w *ReportWriter) NextID() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	millis := w.now().UnixMilli()
	if millis <= w.last {
		millis = w.last + 1
	}
	w.last = millis

	return fmt.Sprintf("%s%d", reportPrefix, millis)
}

// Write persists rows as <id>.xlsx and <id>.json. Either failing is a
// PersistenceError; on failure neither file is left behind.
func (w *ReportWriter) Write(meta ReportMeta, rows []models.ResultRow) (*Report, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return nil, &PersistenceError{Message: "failed to create output directory", Cause: err}
	}
	if err := os.MkdirAll(w.detailsDir, 0755); err != nil {
		return nil, &PersistenceError{Message: "failed to create details directory", Cause: err}
	}

	report, err := w.reserve()
	if err != nil {
		return nil, &PersistenceError{Message: "failed to reserve report id", Cause: err}
	}

	if err := writeSpreadsheet(report.XLSXPath, meta, rows, w.now()); err != nil {
		os.Remove(report.XLSXPath)
		os.Remove(report.DetailsPath)
		return nil, &PersistenceError{Message: "failed to write spreadsheet", Cause: err}
	}

	if err := writeDetails(report.DetailsPath, rows); err != nil {
		os.Remove(report.XLSXPath)
		os.Remove(report.DetailsPath)
		return nil, &PersistenceError{Message: "failed to write result details", Cause: err}
	}

	return report, nil
}

// reserve claims the next id whose spreadsheet and sidecar do not exist yet,
// creating both files exclusively. Ids already on disk, e.g. from an earlier
// process whose clock ran ahead, are skipped.
func (w *ReportWriter) reserve() (*Report, error) {
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		id := w.NextID()
		report := &Report{
			ID:          id,
			XLSXPath:    filepath.Join(w.outputDir, id+".xlsx"),
			DetailsPath: filepath.Join(w.detailsDir, id+".json"),
		}

		if err := createExclusive(report.XLSXPath); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, err
		}
		if err := createExclusive(report.DetailsPath); err != nil {
			os.Remove(report.XLSXPath)
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, err
		}

		return report, nil
	}

	return nil, fmt.Errorf("no free id after %d attempts", maxReserveAttempts)
}

func createExclusive(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

func writeDetails(path string, rows []models.ResultRow) error {
	if rows == nil {
		rows = []models.ResultRow{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadDetails reads back the rows persisted for id
func (w *ReportWriter) LoadDetails(id string) ([]models.ResultRow, error) {
	if !ValidID(id) {
		return nil, ErrReportNotFound
	}

	data, err := os.ReadFile(filepath.Join(w.detailsDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("read result details: %w", err)
	}

	var rows []models.ResultRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse result details: %w", err)
	}
	return rows, nil
}

// ReportPath resolves a download name (with or without .xlsx) to the
// spreadsheet on disk
func (w *ReportWriter) ReportPath(name string) (string, error) {
	id := strings.TrimSuffix(name, ".xlsx")
	if !ValidID(id) {
		return "", ErrReportNotFound
	}

	path := filepath.Join(w.outputDir, id+".xlsx")
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrReportNotFound
	}
	return path, nil
}

// ValidID reports whether id has the bulk_report_<digits> form
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// DownloadURL is the relative URL the spreadsheet is served from
func DownloadURL(id string) string {
	return "/download/" + id + ".xlsx"
}
