package web

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/sheetjoin/internal/core"
	"github.com/JonMunkholm/sheetjoin/internal/logging"
	"github.com/JonMunkholm/sheetjoin/internal/web/templates"
)

// Form field names for the two uploads.
const (
	fieldKeys   = "keys"
	fieldData   = "data"
	fieldFormat = "format"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// maxRunsPage caps GET /api/runs.
const maxRunsPage = 500

// joinForm is one submission of the join form. A file the user did not
// choose is nil; the pipeline reports it as MissingFiles.
type joinForm struct {
	Keys   *multipart.FileHeader
	Data   *multipart.FileHeader
	Format string
}

// downloadParams are the export options of POST /api/join/download.
type downloadParams struct {
	Format string `validate:"omitempty,oneof=xlsx csv"`
}

// joinResponse is the JSON body of POST /api/join.
type joinResponse struct {
	RunID string `json:"run_id"`
	core.View
	Preview    [][]any `json:"preview"`
	Action     string  `json:"action,omitempty"`
	DurationMS int64   `json:"duration_ms"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handleIndex renders the empty form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, templates.ResultData{Status: core.MissingFilesStatus})
}

// handleJoin runs the pipeline and renders the status and preview. HTMX
// requests get only the result fragment.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	run, err := s.runJoin(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	result := s.resultData(run)
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Result(result).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Warn("render result", "error", err)
		}
		return
	}
	s.renderPage(w, r, http.StatusOK, result)
}

// handleDownload runs the pipeline and returns the workbook. When the run
// fails there is nothing to download and the page is shown with its status.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	run, err := s.runJoin(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if !run.Result.OK() {
		s.renderPage(w, r, http.StatusOK, s.resultData(run))
		return
	}

	art, err := s.service.Export(run, core.FormatXLSX)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeArtifact(w, art)
}

// handleAPIJoin runs the pipeline and returns the view as JSON. Pipeline
// failures are 422 with the status in the body.
func (s *Server) handleAPIJoin(w http.ResponseWriter, r *http.Request) {
	run, err := s.runJoin(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, runStatus(run), s.joinResponse(run))
}

// handleAPIDownload returns the joined table as xlsx (default) or csv.
// The format is checked before the pipeline runs.
func (s *Server) handleAPIDownload(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseJoinForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	format, err := s.exportFormat(form.Format)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	run, err := s.execute(r, form)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if !run.Result.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, s.joinResponse(run))
		return
	}

	art, err := s.service.Export(run, format)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeArtifact(w, art)
}

// handleListRuns returns recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)
	if limit > maxRunsPage {
		limit = maxRunsPage
	}

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	if runs == nil {
		runs = []core.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleStatus reports pipeline concurrency.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// runJoin parses the form and runs the pipeline. A returned error means the
// pipeline did not run; outcomes such as missing files are in the Run.
func (s *Server) runJoin(w http.ResponseWriter, r *http.Request) (*core.Run, error) {
	form, err := s.parseJoinForm(w, r)
	if err != nil {
		return nil, err
	}
	return s.execute(r, form)
}

// execute opens the uploads of a parsed form and runs the pipeline.
func (s *Server) execute(r *http.Request, form joinForm) (*core.Run, error) {
	req, closeAll, err := openInputs(form)
	defer closeAll()
	if err != nil {
		return nil, err
	}
	return s.service.Run(WithRequestMetadata(r.Context(), r), req)
}

// exportFormat validates the requested download format. Empty means xlsx.
func (s *Server) exportFormat(raw string) (core.Format, error) {
	if err := s.validate.Struct(downloadParams{Format: raw}); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return "", fmt.Errorf("%w: %v", errInvalidForm, err)
		}
		return "", fmt.Errorf("%w %q", errInvalidFormat, raw)
	}
	if raw == "" {
		return core.FormatXLSX, nil
	}
	return core.Format(raw), nil
}

// parseJoinForm reads the multipart body. Missing files are not an error
// here: the pipeline reports them as its own outcome.
func (s *Server) parseJoinForm(w http.ResponseWriter, r *http.Request) (joinForm, error) {
	var form joinForm

	maxBody := 2*s.cfg.Upload.MaxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return form, fmt.Errorf("%w: request body exceeds %d bytes", core.ErrFileTooLarge, maxBody)
		case errors.Is(err, http.ErrNotMultipart):
			// A plain form post carries no files.
			if perr := r.ParseForm(); perr != nil {
				return form, fmt.Errorf("%w: %v", errInvalidForm, perr)
			}
		default:
			return form, fmt.Errorf("%w: %v", errInvalidForm, err)
		}
	}

	form.Keys = formFile(r, fieldKeys)
	form.Data = formFile(r, fieldData)
	form.Format = r.FormValue(fieldFormat)
	return form, nil
}

// formFile returns the named upload, or nil when none was chosen. Browsers
// send an empty part with no file name for an untouched file input.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return nil
	}
	return files[0]
}

// openInputs opens the chosen uploads. The returned func closes whatever was
// opened and is always safe to call.
func openInputs(form joinForm) (core.Request, func(), error) {
	var req core.Request
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	open := func(fh *multipart.FileHeader) (*core.Input, error) {
		if fh == nil {
			return nil, nil
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		files = append(files, f)
		return &core.Input{Name: fh.Filename, Reader: f, Size: fh.Size}, nil
	}

	var err error
	if req.Keys, err = open(form.Keys); err != nil {
		return req, closeAll, err
	}
	if req.Data, err = open(form.Data); err != nil {
		return req, closeAll, err
	}
	return req, closeAll, nil
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, result templates.ResultData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Page(s.pageData(result)).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Warn("render page", "error", err)
	}
}

func (s *Server) pageData(result templates.ResultData) templates.PageData {
	if result.OutputName == "" {
		result.OutputName = s.cfg.Join.OutputName
	}
	return templates.PageData{
		KeyColumn:   s.cfg.Join.KeyColumn,
		OutputName:  s.cfg.Join.OutputName,
		MaxFileSize: s.cfg.Upload.MaxFileSize,
		Result:      result,
	}
}

func (s *Server) resultData(run *core.Run) templates.ResultData {
	v := run.View
	return templates.ResultData{
		Status:      v.Status,
		Code:        string(v.Code),
		Detail:      v.Detail,
		Columns:     v.Columns,
		Rows:        v.PreviewCells(),
		TotalRows:   v.TotalRows,
		CanDownload: v.CanDownload,
		OutputName:  s.cfg.Join.OutputName,
		Failed:      !run.Result.OK(),
	}
}

func (s *Server) joinResponse(run *core.Run) joinResponse {
	resp := joinResponse{
		RunID:      run.ID,
		View:       run.View,
		Preview:    run.View.PreviewValues(),
		DurationMS: run.Duration.Milliseconds(),
	}
	if je := run.Result.Err(); je != nil {
		resp.Action = core.MapError(je).Action
	}
	return resp
}

func runStatus(run *core.Run) int {
	if run.Result.OK() {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

// writeArtifact sends a download as an attachment.
func writeArtifact(w http.ResponseWriter, art *core.Artifact) {
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(art.Data)
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
