package ingestion

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/fmuoria/resume-matcher/internal/models"
)

const (
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
)

// DocumentExtractor extracts plain text from PDF, DOCX and TXT files
type DocumentExtractor struct{}

// NewDocumentExtractor creates a document extractor
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// Extract returns the text content of the file at path in the given format
func (d *DocumentExtractor) Extract(path string, format models.Format) (string, error) {
	var (
		text string
		err  error
	)

	switch format {
	case models.FormatPDF:
		text, err = convertWith(path, docconv.ConvertPDF)
	case models.FormatDOCX:
		text, err = convertWith(path, docconv.ConvertDocx)
	case models.FormatTXT:
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	default:
		return "", &ExtractionError{
			Path:        path,
			Message:     fmt.Sprintf("unsupported file type: %q", format),
			Unsupported: true,
		}
	}
	if err != nil {
		return "", &ExtractionError{Path: path, Message: fmt.Sprintf("failed to read %s file", strings.ToUpper(string(format))), Cause: err}
	}

	text = strings.TrimSpace(sanitizeUTF8(text))
	if text == "" {
		return "", &ExtractionError{Path: path, Message: "no text could be extracted (scanned image or empty document?)"}
	}
	if IsBinaryData(text) {
		return "", &ExtractionError{Path: path, Message: "extracted content appears to be binary data"}
	}

	return text, nil
}

func convertWith(path string, convert func(r io.Reader) (string, map[string]string, error)) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, _, err := convert(f)
	return text, err
}

// sanitizeUTF8 replaces invalid UTF-8 sequences so the text is safe to send to a model
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	// Check for PDF magic number
	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// Check for ZIP local file header (DOCX files)
	if strings.HasPrefix(content, "PK\x03\x04") {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
