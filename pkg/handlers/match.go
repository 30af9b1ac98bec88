package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/export"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
	"github.com/ekaya-inc/ekaya-match/pkg/services"
)

// Output formats selected with ?format=.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// MatchHandler handles matching runs and file uploads.
type MatchHandler struct {
	matchService   services.MatchService
	maxUploadBytes int64
	now            func() time.Time
	logger         *zap.Logger
}

// NewMatchHandler creates a new match handler. maxUploadBytes bounds each multipart request.
func NewMatchHandler(matchService services.MatchService, maxUploadBytes int64, logger *zap.Logger) *MatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchHandler{
		matchService:   matchService,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
		logger:         logger,
	}
}

// RegisterRoutes registers the match handler's routes on the given mux.
func (h *MatchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/match", h.Match)
	mux.HandleFunc("POST /api/match/upload", h.MatchUpload)
	mux.HandleFunc("POST /api/uploads", h.Upload)
	mux.HandleFunc("DELETE /api/uploads/{id}", h.DeleteUpload)
}

// Match handles POST /api/match with a JSON MatchRequest body.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}

	var req services.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	run, err := h.matchService.Run(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, "match", err)
		return
	}
	h.writeRun(w, run, format)
}

// Upload handles POST /api/uploads with a multipart "file" and optional "sheet".
// The response names the columns so a later /api/match can reference them.
func (h *MatchHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	filename, data, err := readFormFile(r, "file")
	if err != nil {
		h.badRequest(w, "missing_file", err.Error())
		return
	}

	info, err := h.matchService.Upload(filename, r.FormValue("sheet"), data)
	if err != nil {
		writeError(w, r, h.logger, "upload", err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: info}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeleteUpload handles DELETE /api/uploads/{id}
func (h *MatchHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseUploadID(w, r, h.logger)
	if !ok {
		return
	}
	h.matchService.DiscardUpload(id)
	w.WriteHeader(http.StatusNoContent)
}

// MatchUpload handles POST /api/match/upload: both files and the column
// choices in one multipart form. Uploads are discarded after the run.
func (h *MatchHandler) MatchUpload(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	req, err := matchRequestFromForm(r)
	if err != nil {
		h.badRequest(w, "invalid_request", err.Error())
		return
	}

	for _, side := range []struct {
		field string
		sheet string
		spec  *services.FileSpec
	}{
		{"source_file", r.FormValue("source_sheet"), req.Source.File},
		{"target_file", r.FormValue("target_sheet"), req.Target.File},
	} {
		filename, data, err := readFormFile(r, side.field)
		if err != nil {
			h.badRequest(w, "missing_file", err.Error())
			return
		}
		info, err := h.matchService.Upload(filename, side.sheet, data)
		if err != nil {
			writeError(w, r, h.logger, "upload "+side.field, err)
			return
		}
		defer h.matchService.DiscardUpload(info.ID)
		side.spec.UploadID = info.ID.String()
		side.spec.Sheet = side.sheet
	}

	run, err := h.matchService.Run(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, "match", err)
		return
	}
	h.writeRun(w, run, format)
}

// matchRequestFromForm reads column choices and options from a multipart form.
func matchRequestFromForm(r *http.Request) (services.MatchRequest, error) {
	req := services.MatchRequest{
		Source:   services.SourceSpec{File: &services.FileSpec{Column: r.FormValue("source_column")}},
		Target:   services.SourceSpec{File: &services.FileSpec{Column: r.FormValue("target_column")}},
		IDColumn: r.FormValue("id_column"),
	}

	if v := r.FormValue("threshold"); v != "" {
		threshold, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("threshold must be an integer")
		}
		req.Threshold = &threshold
	}
	if v := r.FormValue("workers"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("workers must be an integer")
		}
		req.Workers = workers
	}
	if v := r.FormValue("exclusive_targets"); v != "" {
		exclusive, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("exclusive_targets must be a boolean")
		}
		req.ExclusiveTargets = exclusive
	}
	return req, nil
}

func readFormFile(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%s is required", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", field, err)
	}
	return header.Filename, data, nil
}

func (h *MatchHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			if err := ErrorResponse(w, http.StatusRequestEntityTooLarge, "upload_too_large",
				fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit)); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return false
		}
		h.badRequest(w, "invalid_multipart", "Expected a multipart/form-data body")
		return false
	}
	return true
}

func (h *MatchHandler) format(w http.ResponseWriter, r *http.Request) (string, bool) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "":
		return FormatJSON, true
	case FormatJSON, FormatXLSX, FormatCSV:
		return format, true
	default:
		h.badRequest(w, "invalid_format", "format must be json, xlsx or csv")
		return "", false
	}
}

// writeRun renders the run. Files are built in memory first so a failure
// never leaves a partial download.
func (h *MatchHandler) writeRun(w http.ResponseWriter, run *models.MatchRun, format string) {
	report := export.Report{IDColumn: run.IDColumn, Records: run.Records, Summary: run.Summary}
	filename := export.FileName(h.now())

	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case FormatXLSX:
		contentType = xlsxContentType
		err = export.WriteWorkbook(&buf, report)
	case FormatCSV:
		contentType = "text/csv; charset=utf-8"
		filename = strings.TrimSuffix(filename, ".xlsx") + ".csv"
		err = export.WriteCSV(&buf, run.Records, run.IDColumn)
	default:
		if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: run}); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}
	if err != nil {
		h.logger.Error("Failed to render export", zap.String("format", format), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "export_failed", "Failed to render results"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Run-ID", run.RunID.String())
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("Failed to write export", zap.Error(err))
	}
}

func (h *MatchHandler) badRequest(w http.ResponseWriter, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
