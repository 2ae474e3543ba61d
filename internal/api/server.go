// Package api exposes the matcher over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/fmuoria/resume-matcher/internal/agent"
	"github.com/fmuoria/resume-matcher/internal/ingestion"
	"go.uber.org/zap"
)

const (
	// multipart parts beyond this are spooled to disk by net/http
	formMemoryBytes = 32 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Options configures the HTTP server
type Options struct {
	// MaxUploadBytes caps the request body of upload endpoints
	MaxUploadBytes int64
	Version        string
}

// Server handles HTTP requests
type Server struct {
	agent   *agent.Agent
	files   *ingestion.FileHandler
	logger  *zap.Logger
	options Options
}

// NewServer creates a new API server
func NewServer(a *agent.Agent, files *ingestion.FileHandler, logger *zap.Logger, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	return &Server{
		agent:   a,
		files:   files,
		logger:  logger,
		options: opts,
	}
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /match", s.handleMatch)
	mux.HandleFunc("POST /match-basic", s.handleMatchBasic)
	mux.HandleFunc("POST /bulk-match", s.handleBulkMatch)
	mux.HandleFunc("GET /download/{id}", s.handleDownload)
	mux.HandleFunc("GET /bulk-recents", s.handleRecents)
	mux.HandleFunc("GET /bulk-details/{id}", s.handleDetails)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.loggingMiddleware(corsMiddleware(mux))
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "Resume Matcher",
		"version": s.options.Version,
		"scorer":  s.agent.Scorer().Name(),
		"endpoints": map[string]string{
			"POST /match":            "Score one resume against a job description",
			"POST /match-basic":      "Score one resume by text similarity",
			"POST /bulk-match":       "Score a zip of resumes and build a report",
			"GET /download/{id}":     "Download a batch report spreadsheet",
			"GET /bulk-recents":      "List recent batch runs",
			"GET /bulk-details/{id}": "Get the rows of a batch run",
			"GET /health":            "Health check",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleRecents(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.agent.History().List())
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// respondFailure maps err to a status and logs server-side failures
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Info("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.respondJSON(w, status, body)
}
