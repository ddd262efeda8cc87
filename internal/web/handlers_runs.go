package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/report"
	"github.com/JonMunkholm/csvclean/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// runOptions builds the run options from the configured defaults and the
// optional mode and policy query parameters.
func (s *Server) runOptions(r *http.Request) (core.Options, error) {
	q := r.URL.Query()

	modeStr := s.cfg.Run.Mode
	if v := q.Get("mode"); v != "" {
		modeStr = v
	}
	mode, err := core.ParseMode(modeStr)
	if err != nil {
		return core.Options{}, err
	}

	policyStr := s.cfg.Run.FailurePolicy
	if v := q.Get("policy"); v != "" {
		policyStr = v
	}
	policy, err := core.ParseFailurePolicy(policyStr)
	if err != nil {
		return core.Options{}, err
	}

	return core.Options{
		Mode:      mode,
		Policy:    policy,
		Workers:   s.cfg.Run.Workers,
		ChunkSize: s.cfg.Run.ChunkSize,
		Registry:  s.registry,
		Logger:    logging.FromContext(r.Context()),
	}, nil
}

func (s *Server) reportOptions() report.Options {
	format, _ := report.ParseErrorFormat(s.cfg.Output.ErrorFormat)
	return report.Options{ErrorFormat: format}
}

// handleCreateRun cleans an uploaded file and stores the result. The
// optional "name" form field selects the rules by file name when the
// uploaded file name differs from the configured one.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	opts, err := s.runOptions(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		if isTooLarge(err) {
			s.respondError(w, r, fmt.Errorf("%w: limit is %d bytes", errTooLarge, maxSize))
			return
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			badRequest(w, r, "expected a multipart/form-data upload")
			return
		}
		s.respondError(w, r, errNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	name := header.Filename
	if v := strings.TrimSpace(r.FormValue("name")); v != "" {
		name = v
	}
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Run.Timeout)
	defer cancel()

	result, err := core.ProcessReader(ctx, file, name, s.rules, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	stored, err := store.FromResult(result, s.reportOptions(), s.now())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.SaveRun(ctx, stored); err != nil {
		s.respondError(w, r, fmt.Errorf("save run: %w", err))
		return
	}

	w.Header().Set("Location", "/api/runs/"+stored.Run.ID.String())
	writeJSON(w, r, http.StatusCreated, stored.Run)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"runs": runs})
}

// runID parses the {runID} URL parameter, writing a 400 when it is invalid.
func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		badRequest(w, r, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (s *Server) handleRunCleaned(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	data, err := s.store.Cleaned(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cleanedPath, _ := report.Paths("", run.File, report.FormatJSONL)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(cleanedPath)))
	_, _ = w.Write(data)
}

// handleRunErrors streams a run's error records as JSONL (default: the
// configured format) or CSV with ?format=csv.
func (s *Server) handleRunErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	formatStr := s.cfg.Output.ErrorFormat
	if v := r.URL.Query().Get("format"); v != "" {
		formatStr = v
	}
	format, err := report.ParseErrorFormat(formatStr)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	records, err := s.store.Errors(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	_, errsPath := report.Paths("", run.File, format)
	contentType := "application/x-ndjson"
	if format == report.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(errsPath)))
	if err := report.WriteErrors(w, records, format); err != nil {
		logging.FromContext(r.Context()).Error("write errors", "run_id", id, "error", err)
	}
}
