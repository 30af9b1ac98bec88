package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-match/pkg/logging"
	"github.com/ekaya-inc/ekaya-match/pkg/services"
)

// DatasourceRequest carries a connection config. Credentials are used for
// this request only and never stored.
type DatasourceRequest struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
	// Table, when set, selects ListColumns instead of ListTables.
	Table string `json:"table,omitempty"`
}

// ListTypesResponse wraps the registered adapter types.
type ListTypesResponse struct {
	Types []datasource.DatasourceAdapterInfo `json:"types"`
}

// CatalogResponse holds tables, or the columns of one table.
type CatalogResponse struct {
	Tables  []datasource.Table  `json:"tables,omitempty"`
	Table   string              `json:"table,omitempty"`
	Columns []datasource.Column `json:"columns,omitempty"`
}

// TestConnectionResponse for connection test result.
type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DatasourcesHandler handles datasource-related HTTP requests.
type DatasourcesHandler struct {
	datasourceService services.DatasourceService
	logger            *zap.Logger
}

// NewDatasourcesHandler creates a new datasources handler.
func NewDatasourcesHandler(datasourceService services.DatasourceService, logger *zap.Logger) *DatasourcesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasourcesHandler{
		datasourceService: datasourceService,
		logger:            logger,
	}
}

// RegisterRoutes registers the datasources handler's routes on the given mux.
func (h *DatasourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/datasources/types", h.ListTypes)
	mux.HandleFunc("POST /api/datasources/test", h.TestConnection)
	mux.HandleFunc("POST /api/datasources/columns", h.Catalog)
}

// ListTypes handles GET /api/datasources/types
func (h *DatasourcesHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	response := ApiResponse{Success: true, Data: ListTypesResponse{Types: h.datasourceService.Types()}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// TestConnection handles POST /api/datasources/test
// A failed connection is reported in the body with status 200.
func (h *DatasourcesHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp := TestConnectionResponse{Success: true, Message: "Connection successful"}
	if err := h.datasourceService.TestConnection(r.Context(), req.Type, req.Config); err != nil {
		h.logger.Debug("Connection test failed", zap.String("type", req.Type), zap.Error(err))
		resp = TestConnectionResponse{Success: false, Message: logging.SanitizeError(err)}
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Catalog handles POST /api/datasources/columns
// Lists tables, or the columns of req.Table when set.
func (h *DatasourcesHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	var data CatalogResponse
	if req.Table == "" {
		tables, err := h.datasourceService.ListTables(r.Context(), req.Type, req.Config)
		if err != nil {
			writeError(w, r, h.logger, "list tables", err)
			return
		}
		data.Tables = tables
	} else {
		columns, err := h.datasourceService.ListColumns(r.Context(), req.Type, req.Config, req.Table)
		if err != nil {
			writeError(w, r, h.logger, "list columns", err)
			return
		}
		data.Table = req.Table
		data.Columns = columns
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *DatasourcesHandler) decode(w http.ResponseWriter, r *http.Request) (DatasourceRequest, bool) {
	var req DatasourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return req, false
	}
	if req.Type == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_type", "Datasource type is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return req, false
	}
	return req, true
}
