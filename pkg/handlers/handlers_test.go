package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource/sqlite" // Register sqlite adapter
	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/config"
	"github.com/ekaya-inc/ekaya-match/pkg/export"
	"github.com/ekaya-inc/ekaya-match/pkg/matcher"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
	"github.com/ekaya-inc/ekaya-match/pkg/services"
)

const (
	sourceCSV = "Label\nCash\nCash and Cash equivalents\nPreffered Equity\nOther Reverses\n"
	targetCSV = "Label,DataItemID\nCash(s),1\nCashandCashequivalents,2\nPref.Equity,3\nProperty Expenses,4\n"
)

type fakeDatasourceService struct {
	tables  []datasource.Table
	columns []datasource.Column
	entries []models.Entry
	err     error
}

func (f *fakeDatasourceService) Types() []datasource.DatasourceAdapterInfo {
	return []datasource.DatasourceAdapterInfo{{Type: "sqlite", DisplayName: "SQLite"}}
}

func (f *fakeDatasourceService) TestConnection(context.Context, string, map[string]any) error {
	return f.err
}

func (f *fakeDatasourceService) ListTables(context.Context, string, map[string]any) ([]datasource.Table, error) {
	return f.tables, f.err
}

func (f *fakeDatasourceService) ListColumns(context.Context, string, map[string]any, string) ([]datasource.Column, error) {
	return f.columns, f.err
}

func (f *fakeDatasourceService) ReadColumn(context.Context, services.DatasourceSpec, string) ([]models.Entry, error) {
	return f.entries, f.err
}

func newTestMux(t *testing.T, ds services.DatasourceService) *http.ServeMux {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := &config.Config{Version: "test", Env: "test", Matching: config.MatchingConfig{Threshold: 70, IDColumn: "DataItemID", Workers: 1}}

	svc := services.NewMatchService(matcher.New(nil, logger), ds, services.NewUploadStore(8, time.Minute), cfg.Matching, logger)
	match := NewMatchHandler(svc, 1<<20, logger)
	match.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }

	mux := http.NewServeMux()
	NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	NewDatasourcesHandler(ds, logger).RegisterRoutes(mux)
	match.RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, spec := range files {
		name, content, _ := strings.Cut(spec, "|")
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type runEnvelope struct {
	Success bool            `json:"success"`
	Data    models.MatchRun `json:"data"`
}

func TestHealthAndPing(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	rec := doJSON(t, mux, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = doJSON(t, mux, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ping PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ping))
	assert.Equal(t, "ekaya-match", ping.Service)
	assert.Equal(t, "test", ping.Version)
	assert.Equal(t, 70, ping.Threshold)
}

func TestMatch_JSON(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	rec := doJSON(t, mux, http.MethodPost, "/api/match", map[string]any{
		"source": map[string]any{"values": []any{"Cash", "Cash and Cash equivalents", "Preffered Equity", "Other Reverses"}},
		"target": map[string]any{
			"values": []any{"Cash(s)", "CashandCashequivalents", "Pref.Equity", "Property Expenses"},
			"ids":    []any{1001, 1002, 1003, 1004},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp runEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Data.Summary.Matches)
	assert.Equal(t, "1001", *resp.Data.Result.Matches[0].MatchedID)
	require.Len(t, resp.Data.Records, 5)
	assert.Equal(t, models.RecordTypeTargetMismatch, resp.Data.Records[4].Type)
}

func TestMatch_ValidationError(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	rec := doJSON(t, mux, http.MethodPost, "/api/match", map[string]any{
		"source":    map[string]any{},
		"target":    map[string]any{"values": []any{"a"}},
		"threshold": 150,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation_failed", resp.Error)
	assert.Len(t, resp.Fields, 2)
}

func TestMatch_BadRequests(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/match", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")

	rec = doJSON(t, mux, http.MethodPost, "/api/match?format=pdf", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_format")
}

func TestMatch_DatasourceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.ErrColumnNotFound, http.StatusBadRequest, "column_not_found"},
		{apperrors.ErrEmptyDataset, http.StatusBadRequest, "empty_dataset"},
		{apperrors.ErrSheetNotFound, http.StatusBadRequest, "sheet_not_found"},
		{apperrors.ErrValidation, http.StatusBadRequest, "validation_failed"},
		{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			datasource.Register(datasource.DatasourceAdapterRegistration{
				Info: datasource.DatasourceAdapterInfo{Type: "fake"},
			})
			mux := newTestMux(t, &fakeDatasourceService{err: tt.err})

			rec := doJSON(t, mux, http.MethodPost, "/api/match", map[string]any{
				"source": map[string]any{"datasource": map[string]any{"type": "fake", "table": "t", "column": "c"}},
				"target": map[string]any{"values": []any{"Cash"}},
			})
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestMatch_CancelledRequestHasNoBody(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body := `{"source":{"values":["Cash"]},"target":{"values":["Cash(s)"]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/match", strings.NewReader(body)).WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Empty(t, rec.Body.String())
}

func TestMatchUpload_Workbook(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	body, contentType := multipartBody(t,
		map[string]string{"source_file": "source.csv|" + sourceCSV, "target_file": "target.csv|" + targetCSV},
		map[string]string{"source_column": "Label", "target_column": "Label", "threshold": "70"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/match/upload?format=xlsx", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "fuzzy_matching_results_20261019_093000.xlsx")
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{export.ResultsSheet, export.SummarySheet}, f.GetSheetList())
	rows, err := f.GetRows(export.ResultsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestMatchUpload_CSV(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	body, contentType := multipartBody(t,
		map[string]string{"source_file": "source.csv|" + sourceCSV, "target_file": "target.csv|" + targetCSV},
		map[string]string{"source_column": "Label", "target_column": "Label", "exclusive_targets": "true"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/match/upload?format=csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "CashandCashequivalents")
}

func TestMatchUpload_Errors(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	body, contentType := multipartBody(t,
		map[string]string{"source_file": "source.csv|" + sourceCSV},
		map[string]string{"source_column": "Label", "target_column": "Label"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/match/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "target_file is required")

	body, contentType = multipartBody(t,
		map[string]string{"source_file": "source.csv|" + sourceCSV, "target_file": "target.csv|" + targetCSV},
		map[string]string{"source_column": "Label", "target_column": "Name"},
	)
	req = httptest.NewRequest(http.MethodPost, "/api/match/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "column_not_found")

	body, contentType = multipartBody(t, nil, map[string]string{"threshold": "high"})
	req = httptest.NewRequest(http.MethodPost, "/api/match/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "threshold must be an integer")

	rec = doJSON(t, mux, http.MethodPost, "/api/match/upload", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_multipart")
}

func TestUploadThenMatch(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	upload := func(name, content string) services.UploadInfo {
		body, contentType := multipartBody(t, map[string]string{"file": name + "|" + content}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			Data services.UploadInfo `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp.Data
	}

	src := upload("source.csv", sourceCSV)
	tgt := upload("target.csv", targetCSV)
	assert.Equal(t, []string{"Label", "DataItemID"}, tgt.Columns)
	assert.Equal(t, 4, tgt.Rows)

	rec := doJSON(t, mux, http.MethodPost, "/api/match", map[string]any{
		"source":    map[string]any{"file": map[string]any{"upload_id": src.ID.String(), "column": "Label"}},
		"target":    map[string]any{"file": map[string]any{"upload_id": tgt.ID.String(), "column": "Label"}},
		"threshold": 90,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp runEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 90, resp.Data.Threshold)
	assert.Equal(t, 3, resp.Data.Summary.Matches)

	rec = doJSON(t, mux, http.MethodDelete, "/api/uploads/"+src.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/match", map[string]any{
		"source": map[string]any{"file": map[string]any{"upload_id": src.ID.String(), "column": "Label"}},
		"target": map[string]any{"values": []any{"Cash"}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, "/api/uploads/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_upload_id")
}

func TestUpload_NotTabular(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	body, contentType := multipartBody(t, map[string]string{"file": "notes.pdf|%PDF-1.7"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_tabular")
}

func TestDatasources(t *testing.T) {
	ds := &fakeDatasourceService{
		tables:  []datasource.Table{{Schema: "finance", Name: "chart_of_accounts"}},
		columns: []datasource.Column{{Name: "label", DataType: "text", IsNullable: true}},
	}
	mux := newTestMux(t, ds)

	rec := doJSON(t, mux, http.MethodGet, "/api/datasources/types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"sqlite"`)

	rec = doJSON(t, mux, http.MethodPost, "/api/datasources/columns", DatasourceRequest{Type: "sqlite"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chart_of_accounts")

	rec = doJSON(t, mux, http.MethodPost, "/api/datasources/columns", DatasourceRequest{Type: "sqlite", Table: "finance.chart_of_accounts"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data CatalogResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "finance.chart_of_accounts", resp.Data.Table)
	assert.Equal(t, ds.columns, resp.Data.Columns)

	rec = doJSON(t, mux, http.MethodPost, "/api/datasources/columns", DatasourceRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_type")

	rec = doJSON(t, mux, http.MethodPost, "/api/datasources/test", DatasourceRequest{Type: "sqlite"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestDatasources_Failures(t *testing.T) {
	ds := &fakeDatasourceService{err: assert.AnError}
	mux := newTestMux(t, ds)

	rec := doJSON(t, mux, http.MethodPost, "/api/datasources/test", DatasourceRequest{Type: "postgres"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	ds.err = apperrors.ErrUnsupportedSource
	rec = doJSON(t, mux, http.MethodPost, "/api/datasources/columns", DatasourceRequest{Type: "oracle"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_source")
}

func TestUpload_UnknownSheet(t *testing.T) {
	mux := newTestMux(t, &fakeDatasourceService{})

	f := excelize.NewFile()
	header := []any{"Label"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	body, contentType := multipartBody(t,
		map[string]string{"file": "accounts.xlsx|" + buf.String()},
		map[string]string{"sheet": "Balances"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sheet_not_found")
	assert.Contains(t, rec.Body.String(), "Sheet1")
}

func TestDatasources_SQLitePathConfinedToDir(t *testing.T) {
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE accounts (label TEXT); INSERT INTO accounts VALUES ('Cash');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	logger := zaptest.NewLogger(t)
	ds := services.NewDatasourceService(
		datasource.NewDatasourceAdapterFactory(datasource.AdapterOptions{SQLiteDir: dir}, logger),
		config.DatasourceConfig{QueryTimeoutSeconds: 5, MaxRows: 100},
		logger,
	)
	mux := newTestMux(t, ds)

	rec := doJSON(t, mux, http.MethodPost, "/api/datasources/columns", DatasourceRequest{
		Type: "sqlite", Config: map[string]any{"path": "ledger.db"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "accounts")

	rec = doJSON(t, mux, http.MethodPost, "/api/datasources/columns", DatasourceRequest{
		Type: "sqlite", Config: map[string]any{"path": "/etc/../tmp/x.db"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_failed")
	assert.Contains(t, rec.Body.String(), "outside the sqlite directory")

	rec = doJSON(t, mux, http.MethodPost, "/api/match", map[string]any{
		"source": map[string]any{"datasource": map[string]any{
			"type": "sqlite", "config": map[string]any{"path": "/etc/../tmp/x.db"}, "table": "accounts", "column": "label",
		}},
		"target": map[string]any{"values": []any{"Cash"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_failed")

	rec = doJSON(t, mux, http.MethodPost, "/api/datasources/test", DatasourceRequest{
		Type: "sqlite", Config: map[string]any{"path": "../ledger.db"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}
