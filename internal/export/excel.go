package export

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/fmuoria/resume-matcher/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"

	headerColor    = "4472C4"
	shortlistColor = "C6EFCE"
	rejectColor    = "FFC7CE"
	errorColor     = "FF9999"
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

type sheetStyles struct {
	header    int
	cell      int
	wrap      int
	shortlist int
	reject    int
	failed    int
}

func newSheetStyles(f *excelize.File) (*sheetStyles, error) {
	s := &sheetStyles{}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    thinBorder,
		}},
		{&s.cell, &excelize.Style{
			Alignment: &excelize.Alignment{Vertical: "top"},
			Border:    thinBorder,
		}},
		{&s.wrap, &excelize.Style{
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
			Border:    thinBorder,
		}},
		{&s.shortlist, verdictStyle(shortlistColor)},
		{&s.reject, verdictStyle(rejectColor)},
		{&s.failed, &excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{errorColor}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
			Border:    thinBorder,
		}},
	}

	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, err
		}
		*d.dst = id
	}
	return s, nil
}

func verdictStyle(color string) *excelize.Style {
	return &excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
		Border:    thinBorder,
	}
}

func writeSpreadsheet(path string, meta ReportMeta, rows []models.ResultRow, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	styles, err := newSheetStyles(f)
	if err != nil {
		return fmt.Errorf("create styles: %w", err)
	}

	if err := fillResultsSheet(f, styles, meta.Fields, rows); err != nil {
		return fmt.Errorf("fill results sheet: %w", err)
	}
	if err := fillSummarySheet(f, styles, meta, rows, generated); err != nil {
		return fmt.Errorf("fill summary sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		var buf bytes.Buffer
		if writeErr := f.Write(&buf); writeErr != nil {
			return fmt.Errorf("direct save failed (%v), buffer write also failed: %w", err, writeErr)
		}
		if fileErr := os.WriteFile(path, buf.Bytes(), 0644); fileErr != nil {
			return fmt.Errorf("direct save failed (%v), file write failed: %w", err, fileErr)
		}
	}

	return nil
}

// resultColumns returns the Results sheet header: fixed columns around the
// backend's analysis fields
func resultColumns(fields []models.AnalysisField) []string {
	headers := []string{"Filename", "Score", "Verdict"}
	for _, field := range fields {
		headers = append(headers, field.Header())
	}
	return append(headers, "Error")
}

func fillResultsSheet(f *excelize.File, styles *sheetStyles, fields []models.AnalysisField, rows []models.ResultRow) error {
	headers := resultColumns(fields)
	errorCol := len(headers)

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(resultsSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(resultsSheet, cell, cell, styles.header); err != nil {
			return err
		}

		width := 60.0
		switch {
		case col == 0:
			width = 35
		case col < 3:
			width = 12
		case col+1 == errorCol:
			width = 50
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(resultsSheet, name, name, width); err != nil {
			return err
		}
	}

	for i, r := range rows {
		row := i + 2
		values := []any{r.Filename, scoreCell(r.Score), string(r.Verdict)}
		for _, field := range fields {
			values = append(values, field.Value(r))
		}
		values = append(values, r.Error)

		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(resultsSheet, start, &values); err != nil {
			return err
		}

		for col := 1; col <= len(values); col++ {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			if err := f.SetCellStyle(resultsSheet, cell, cell, cellStyle(styles, r, col, errorCol)); err != nil {
				return err
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.AutoFilter(resultsSheet, fmt.Sprintf("A1:%s%d", last, len(rows)+1), []excelize.AutoFilterOptions{}); err != nil {
		return err
	}

	return f.SetPanes(resultsSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func cellStyle(styles *sheetStyles, r models.ResultRow, col, errorCol int) int {
	switch {
	case col == 3 && r.Verdict == models.VerdictShortlist:
		return styles.shortlist
	case col == 3 && r.Verdict == models.VerdictReject:
		return styles.reject
	case col == errorCol && r.Failed():
		return styles.failed
	case col > 3:
		return styles.wrap
	default:
		return styles.cell
	}
}

func scoreCell(s models.Score) any {
	if !s.Valid {
		return ""
	}
	return s.Value
}

type summaryCounts struct {
	shortlisted int
	rejected    int
	failed      int
	scored      int
	total       int
}

func countRows(rows []models.ResultRow) summaryCounts {
	var c summaryCounts
	for _, r := range rows {
		switch {
		case r.Failed():
			c.failed++
		case r.Verdict == models.VerdictShortlist:
			c.shortlisted++
		default:
			c.rejected++
		}
		if r.Score.Valid {
			c.scored++
			c.total += r.Score.Value
		}
	}
	return c
}

func fillSummarySheet(f *excelize.File, styles *sheetStyles, meta ReportMeta, rows []models.ResultRow, generated time.Time) error {
	if err := f.SetColWidth(summarySheet, "A", "A", 25); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 50); err != nil {
		return err
	}

	if err := f.SetCellValue(summarySheet, "A1", "Resume Match Report"); err != nil {
		return err
	}
	if err := f.MergeCell(summarySheet, "A1", "B1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", styles.header); err != nil {
		return err
	}

	counts := countRows(rows)
	average := "n/a"
	if counts.scored > 0 {
		average = fmt.Sprintf("%.2f", float64(counts.total)/float64(counts.scored))
	}

	lines := [][]any{
		{"Job Title:", meta.JobTitle},
		{"Generated:", generated.Format("2006-01-02 15:04:05")},
		{"Scorer:", meta.Backend},
		{"Resumes Processed:", len(rows)},
		{"Shortlisted:", counts.shortlisted},
		{"Rejected:", counts.rejected},
		{"Failed:", counts.failed},
		{"Average Score:", average},
	}

	for i, line := range lines {
		cell := fmt.Sprintf("A%d", i+3)
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return err
		}
	}

	return nil
}
