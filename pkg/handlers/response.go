package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/logging"
	"github.com/ekaya-inc/ekaya-match/pkg/services"
)

// ApiResponse wraps data in the format expected by the frontend.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidationErrorResponse lists every invalid field of a request.
type ValidationErrorResponse struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Fields  []services.FieldError `json:"fields"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeError maps a service error to a status and error code. A request
// whose client went away gets no body.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, action string, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		logger.Debug("Request cancelled", zap.String("action", action))
		return
	}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		resp := ValidationErrorResponse{Error: "validation_failed", Message: "Invalid request", Fields: verr.Fields}
		if err := WriteJSON(w, http.StatusBadRequest, resp); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, apperrors.ErrInvalidThreshold):
		status, code = http.StatusBadRequest, "invalid_threshold"
	case errors.Is(err, apperrors.ErrColumnNotFound):
		status, code = http.StatusBadRequest, "column_not_found"
	case errors.Is(err, apperrors.ErrSheetNotFound):
		status, code = http.StatusBadRequest, "sheet_not_found"
	case errors.Is(err, apperrors.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperrors.ErrEmptyDataset):
		status, code = http.StatusBadRequest, "empty_dataset"
	case errors.Is(err, apperrors.ErrNotTabular):
		status, code = http.StatusBadRequest, "not_tabular"
	case errors.Is(err, apperrors.ErrUnsupportedSource):
		status, code = http.StatusBadRequest, "unsupported_source"
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	}

	message := logging.SanitizeError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("action", action), zap.String("error", message))
	} else {
		logger.Debug("Request rejected", zap.String("action", action), zap.String("error", message))
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
