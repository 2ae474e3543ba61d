// Package ingestion turns uploaded documents and archives into text and
// candidate resume files.
package ingestion

import (
	"fmt"
	"strings"
)

// ExtractionError represents a failure to turn a document into text
type ExtractionError struct {
	Path    string
	Message string
	// Unsupported is set when the file format is not handled at all
	Unsupported bool
	Cause       error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// ArchiveError represents an unreadable, corrupt or unsafe archive
type ArchiveError struct {
	Message string
	Cause   error
}

func (e *ArchiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("archive error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("archive error: %s", e.Message)
}

func (e *ArchiveError) Unwrap() error {
	return e.Cause
}

// NoEligibleFilesError is returned when an archive holds no scorable resume
type NoEligibleFilesError struct {
	TotalFiles int
	FileTypes  []string
	Filenames  []string
}

func (e *NoEligibleFilesError) Error() string {
	types := "none"
	if len(e.FileTypes) > 0 {
		types = strings.Join(e.FileTypes, ", ")
	}
	return fmt.Sprintf("no PDF or DOCX resumes found in archive (%d files, types: %s)", e.TotalFiles, types)
}
