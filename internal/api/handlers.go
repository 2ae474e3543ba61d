package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmuoria/resume-matcher/internal/agent"
	"github.com/fmuoria/resume-matcher/internal/export"
	"github.com/fmuoria/resume-matcher/internal/scoring"
	"go.uber.org/zap"
)

const (
	fieldResume         = "resume"
	fieldJobDescription = "job_description"
	fieldJDText         = "jd_text"
	fieldResumesZip     = "resumes_zip"
	fieldJobTitle       = "job_title"
)

// handleMatch scores one resume with the configured backend
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	s.match(w, r, s.agent.Scorer())
}

// handleMatchBasic scores one resume by text similarity only
func (s *Server) handleMatchBasic(w http.ResponseWriter, r *http.Request) {
	s.match(w, r, s.agent.BasicScorer())
}

func (s *Server) match(w http.ResponseWriter, r *http.Request, scorer scoring.Scorer) {
	if err := s.parseUpload(w, r); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	defer cleanupForm(r)

	resumePath, err := s.saveFormFile(r, fieldResume)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	if resumePath == "" {
		s.respondError(w, http.StatusBadRequest, "Resume not uploaded")
		return
	}
	defer s.removeUpload(resumePath)

	jdText, err := s.jobDescription(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	resp, err := s.agent.Match(r.Context(), scorer, resumePath, jdText)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleBulkMatch scores every resume in an uploaded zip
func (s *Server) handleBulkMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	defer cleanupForm(r)

	if len(r.MultipartForm.File[fieldResumesZip]) == 0 {
		s.respondError(w, http.StatusBadRequest, "ZIP file not uploaded")
		return
	}

	jdText, err := s.jobDescription(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	archivePath, err := s.saveFormFile(r, fieldResumesZip)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	// a client disconnect must not cut a batch short
	ctx := context.WithoutCancel(r.Context())

	result, err := s.agent.RunBatch(ctx, agent.BatchRequest{
		ArchivePath:    archivePath,
		JobDescription: jdText,
		JobTitle:       r.FormValue(fieldJobTitle),
	})
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleDownload streams a report spreadsheet as an attachment
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, err := s.agent.Reports().ReportPath(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Report not found")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// handleDetails returns the rows persisted for a batch run
func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	rows, err := s.agent.Reports().LoadDetails(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, export.ErrReportNotFound) {
			s.respondError(w, http.StatusNotFound, "Details not found")
			return
		}
		s.respondFailure(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, rows)
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.options.MaxUploadBytes)
	if err := r.ParseMultipartForm(formMemoryBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return &InputValidationError{Message: "Failed to parse form", Cause: err}
	}
	return nil
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

// saveFormFile stores the named upload in the uploads directory. It returns
// an empty path when the request has no such file.
func (s *Server) saveFormFile(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", &InputValidationError{Message: "Failed to read " + field, Cause: err}
	}
	defer file.Close()

	path, err := s.files.SaveUploadedFile(header.Filename, file)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", field, err)
	}
	return path, nil
}

// jobDescription reads the job description from an uploaded file, falling
// back to the jd_text field
func (s *Server) jobDescription(r *http.Request) (string, error) {
	path, err := s.saveFormFile(r, fieldJobDescription)
	if err != nil {
		return "", err
	}
	if path != "" {
		defer s.removeUpload(path)
		return s.agent.ExtractDocument(path)
	}

	text := strings.TrimSpace(r.FormValue(fieldJDText))
	if text == "" {
		text = strings.TrimSpace(r.FormValue(fieldJobDescription))
	}
	if text == "" {
		return "", &InputValidationError{Message: "Job description is required: upload job_description or provide jd_text"}
	}
	return text, nil
}

func (s *Server) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(err))
	}
}
