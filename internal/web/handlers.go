package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/register/internal/logging"
	"github.com/JonMunkholm/register/internal/service"
	"github.com/JonMunkholm/register/internal/web/templates"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temporary file.
const multipartMemory = 4 << 20

// handleRegister runs a registration for the multipart "file" field and
// returns the summary.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(min(maxSize, multipartMemory)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: limit %d bytes", service.ErrFileTooLarge, tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", service.ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", service.ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	logging.FromContext(r.Context()).Info("registration requested",
		"file", header.Filename,
		"size", header.Size,
	)

	res, err := s.service.Register(r.Context(), file, header.Filename)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Location", "/api/register/"+res.UploadID.String())
	writeJSON(w, http.StatusCreated, res)
}

// handleGetResult returns the summary of a finished registration.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExportAccounts streams the accepted accounts as CSV.
func (s *Server) handleExportAccounts(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}

	setCSVDownload(w, "registered_accounts", res.UploadID)
	if err := s.service.ExportAccounts(res.UploadID, w); err != nil {
		// Headers are already sent
		logging.FromContext(r.Context()).Error("export accounts", "upload_id", res.UploadID, "error", err)
	}
}

// handleExportFailedRows streams the rejected rows as CSV.
func (s *Server) handleExportFailedRows(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}

	setCSVDownload(w, "failed_rows", res.UploadID)
	if err := s.service.ExportFailedRows(res.UploadID, w); err != nil {
		logging.FromContext(r.Context()).Error("export failed rows", "upload_id", res.UploadID, "error", err)
	}
}

// handleSummaryPage renders the HTML summary of a registration.
func (s *Server) handleSummaryPage(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.SummaryPage(summaryParams(res)).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render summary page", "error", err)
	}
}

// handleHealth reports liveness and, when configured, database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"active_registrations": s.service.ActiveRegistrations(),
	})
}

// lookup resolves the {uploadID} URL parameter, writing an error response
// when it is malformed or unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*service.Result, bool) {
	raw := chi.URLParam(r, "uploadID")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: invalid id %q", service.ErrUploadNotFound, raw), http.StatusNotFound)
		return nil, false
	}

	res, err := s.service.Get(id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return nil, false
	}
	return res, true
}

func setCSVDownload(w http.ResponseWriter, prefix string, id uuid.UUID) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.csv"`, prefix, id))
}

func summaryParams(res *service.Result) templates.SummaryParams {
	id := res.UploadID.String()
	p := templates.SummaryParams{
		UploadID:      id,
		FileName:      res.FileName,
		CreatedAt:     res.CreatedAt.Format(time.DateTime),
		TotalRows:     res.TotalRowsUpload,
		TotalSuccess:  res.TotalSuccess,
		TotalError:    res.TotalError,
		AccountsURL:   "/api/register/" + id + "/accounts.csv",
		FailedRowsURL: "/api/register/" + id + "/failed-rows.csv",
	}
	for _, a := range res.NewAccounts {
		p.Accounts = append(p.Accounts, templates.AccountRow(a))
	}
	for _, f := range res.FailedRows {
		p.Failed = append(p.Failed, templates.FailedRow(f))
	}
	return p
}
