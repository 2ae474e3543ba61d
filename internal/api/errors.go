package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fmuoria/resume-matcher/internal/export"
	"github.com/fmuoria/resume-matcher/internal/ingestion"
	"github.com/fmuoria/resume-matcher/internal/scoring"
)

// InputValidationError is a request that is missing or has malformed input
type InputValidationError struct {
	Message string
	Cause   error
}

func (e *InputValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InputValidationError) Unwrap() error {
	return e.Cause
}

type debugInfo struct {
	TotalFiles int      `json:"totalFiles"`
	FileTypes  []string `json:"fileTypes"`
	Filenames  []string `json:"filenames"`
}

type errorResponse struct {
	Error string     `json:"error"`
	Debug *debugInfo `json:"debug,omitempty"`
}

// errorStatus maps an error from the agent to an HTTP status and response body
func errorStatus(err error) (int, errorResponse) {
	var (
		inputErr    *InputValidationError
		extractErr  *ingestion.ExtractionError
		archiveErr  *ingestion.ArchiveError
		noFilesErr  *ingestion.NoEligibleFilesError
		backendErr  *scoring.BackendError
		persistErr  *export.PersistenceError
		maxBytesErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("upload exceeds the %d MB limit", maxBytesErr.Limit>>20),
		}
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, errorResponse{Error: inputErr.Error()}
	case errors.As(err, &noFilesErr):
		return http.StatusBadRequest, errorResponse{
			Error: noFilesErr.Error(),
			Debug: &debugInfo{
				TotalFiles: noFilesErr.TotalFiles,
				FileTypes:  noFilesErr.FileTypes,
				Filenames:  noFilesErr.Filenames,
			},
		}
	case errors.As(err, &archiveErr):
		return http.StatusBadRequest, errorResponse{Error: archiveErr.Error()}
	case errors.As(err, &extractErr):
		if extractErr.Unsupported {
			return http.StatusBadRequest, errorResponse{Error: extractErr.Error()}
		}
		return http.StatusInternalServerError, errorResponse{Error: "Failed to extract text: " + extractErr.Error()}
	case errors.As(err, &backendErr):
		return http.StatusInternalServerError, errorResponse{Error: backendErr.Error()}
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, errorResponse{Error: "Failed to save report: " + persistErr.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Server error"}
	}
}
