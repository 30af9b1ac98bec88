package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/config"
	"github.com/ekaya-inc/ekaya-match/pkg/export"
	"github.com/ekaya-inc/ekaya-match/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-match/pkg/matcher"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
	"github.com/ekaya-inc/ekaya-match/pkg/sources"
	"github.com/ekaya-inc/ekaya-match/pkg/sql"
)

// FileSpec selects a column of a previously uploaded file.
type FileSpec struct {
	UploadID string `json:"upload_id"`
	Sheet    string `json:"sheet,omitempty"`
	Column   string `json:"column"`
}

// SourceSpec is exactly one of inline values, an uploaded file or a datasource column.
type SourceSpec struct {
	// Values are matched as given. IDs, when present, pairs one identifier with each value.
	Values     []jsonutil.FlexibleString `json:"values,omitempty"`
	IDs        []jsonutil.FlexibleString `json:"ids,omitempty"`
	File       *FileSpec                 `json:"file,omitempty"`
	Datasource *DatasourceSpec           `json:"datasource,omitempty"`
}

func (s SourceSpec) kind() string {
	switch {
	case s.Values != nil:
		return "values"
	case s.File != nil:
		return "file"
	case s.Datasource != nil:
		return "datasource"
	default:
		return ""
	}
}

// MatchRequest describes one matching run. Zero values fall back to the
// configured matching defaults.
type MatchRequest struct {
	Source           SourceSpec `json:"source"`
	Target           SourceSpec `json:"target"`
	Threshold        *int       `json:"threshold,omitempty"`
	IDColumn         string     `json:"id_column,omitempty"`
	ExclusiveTargets bool       `json:"exclusive_targets,omitempty"`
	Workers          int        `json:"workers,omitempty"`
}

// UploadInfo describes an uploaded file so a caller can pick a column.
type UploadInfo struct {
	*Upload
	Sheets  []string `json:"sheets,omitempty"`
	Sheet   string   `json:"sheet,omitempty"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// MatchService defines the interface for matching runs.
type MatchService interface {
	// Run validates req, loads both sides concurrently and matches them.
	Run(ctx context.Context, req MatchRequest) (*models.MatchRun, error)

	// Upload stores a file and describes its first (or named) sheet.
	Upload(filename, sheet string, data []byte) (*UploadInfo, error)

	// DiscardUpload drops a stored file.
	DiscardUpload(id uuid.UUID)
}

// matchService implements MatchService.
type matchService struct {
	matcher     *matcher.Matcher
	datasources DatasourceService
	uploads     *UploadStore
	defaults    config.MatchingConfig
	logger      *zap.Logger
}

// NewMatchService creates a new match service with dependencies.
func NewMatchService(
	m *matcher.Matcher,
	datasources DatasourceService,
	uploads *UploadStore,
	defaults config.MatchingConfig,
	logger *zap.Logger,
) MatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if uploads == nil {
		uploads = NewUploadStore(0, 0)
	}
	return &matchService{
		matcher:     m,
		datasources: datasources,
		uploads:     uploads,
		defaults:    defaults,
		logger:      logger.Named("match"),
	}
}

// Upload stores a file and reads its header so bad files are rejected up front.
func (s *matchService) Upload(filename, sheet string, data []byte) (*UploadInfo, error) {
	table, err := sources.Read(bytes.NewReader(data), filename, sheet)
	if err != nil {
		return nil, err
	}

	info := &UploadInfo{Columns: table.Header, Rows: len(table.Rows)}
	if sources.KindOf(filename) == sources.KindSpreadsheet {
		if info.Sheets, err = sources.SheetNames(bytes.NewReader(data)); err != nil {
			return nil, err
		}
		info.Sheet = sheet
		if info.Sheet == "" && len(info.Sheets) > 0 {
			info.Sheet = info.Sheets[0]
		}
	}
	info.Upload = s.uploads.Put(filename, data)

	s.logger.Debug("Stored upload",
		zap.String("upload_id", info.ID.String()),
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
		zap.Int("rows", info.Rows))
	return info, nil
}

func (s *matchService) DiscardUpload(id uuid.UUID) {
	s.uploads.Delete(id)
}

// Run validates req, loads both sides concurrently and matches them.
func (s *matchService) Run(ctx context.Context, req MatchRequest) (*models.MatchRun, error) {
	opts, idColumn, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.New()

	var source, target []models.Entry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = s.load(gctx, req.Source, idColumn)
		if err != nil {
			return fmt.Errorf("load source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		target, err = s.load(gctx, req.Target, idColumn)
		if err != nil {
			return fmt.Errorf("load target: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result, err := s.matcher.Match(ctx, source, target, opts)
	if err != nil {
		return nil, err
	}

	report := export.NewReport(result, idColumn)
	s.logger.Info("Completed matching run",
		zap.String("run_id", runID.String()),
		zap.String("source_kind", req.Source.kind()),
		zap.String("target_kind", req.Target.kind()),
		zap.Int("source_values", len(source)),
		zap.Int("target_values", len(target)),
		zap.Int("threshold", opts.Threshold),
		zap.Int("matches", report.Summary.Matches),
		zap.Int("source_mismatches", report.Summary.SourceMismatches),
		zap.Int("target_mismatches", report.Summary.TargetMismatches),
		zap.Duration("duration", time.Since(start)))

	return &models.MatchRun{
		RunID:     runID,
		Threshold: opts.Threshold,
		IDColumn:  idColumn,
		Result:    result,
		Records:   report.Records,
		Summary:   report.Summary,
	}, nil
}

// resolve validates every field and applies the configured defaults.
func (s *matchService) resolve(req MatchRequest) (matcher.Options, string, error) {
	verr := &ValidationError{}

	opts := matcher.Options{
		Threshold:        s.defaults.Threshold,
		Workers:          s.defaults.Workers,
		ExclusiveTargets: req.ExclusiveTargets || s.defaults.ExclusiveTargets,
	}
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 100 {
			verr.add("threshold", apperrors.ErrInvalidThreshold.Error())
		}
		opts.Threshold = *req.Threshold
	}
	if req.Workers < 0 {
		verr.add("workers", "must not be negative")
	} else if req.Workers > 0 {
		opts.Workers = req.Workers
	}

	idColumn := req.IDColumn
	if idColumn == "" {
		idColumn = s.defaults.IDColumn
	}

	s.validateSide("source", req.Source, verr)
	s.validateSide("target", req.Target, verr)
	if req.Source.Datasource != nil || req.Target.Datasource != nil {
		if r := sql.CheckIdentifier("id_column", idColumn); r != nil {
			verr.add(r.Field, "looks like SQL injection")
		}
	}

	return opts, idColumn, verr.err()
}

func (s *matchService) validateSide(side string, spec SourceSpec, verr *ValidationError) {
	set := 0
	for _, present := range []bool{spec.Values != nil, spec.File != nil, spec.Datasource != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		verr.add(side, "exactly one of values, file or datasource is required")
		return
	}

	switch {
	case spec.Values != nil:
		if spec.IDs != nil && len(spec.IDs) != len(spec.Values) {
			verr.add(side+".ids", fmt.Sprintf("has %d entries for %d values", len(spec.IDs), len(spec.Values)))
		}
	case spec.File != nil:
		if _, err := uuid.Parse(spec.File.UploadID); err != nil {
			verr.add(side+".file.upload_id", "must be a valid upload id")
		}
		if spec.File.Column == "" {
			verr.add(side+".file.column", "is required")
		}
	case spec.Datasource != nil:
		ds := spec.Datasource
		if ds.Type == "" {
			verr.add(side+".datasource.type", "is required")
		} else if !datasource.IsRegistered(ds.Type) {
			verr.add(side+".datasource.type", fmt.Sprintf("unsupported type %q", ds.Type))
		}
		if ds.Table == "" {
			verr.add(side+".datasource.table", "is required")
		}
		if ds.Column == "" {
			verr.add(side+".datasource.column", "is required")
		}
		for _, r := range sql.CheckIdentifiers(map[string]string{
			side + ".datasource.table":  ds.Table,
			side + ".datasource.column": ds.Column,
		}) {
			verr.add(r.Field, "looks like SQL injection")
		}
	}
}

// load reads one side. File and datasource sides must yield at least one
// value; inline values are taken as given.
func (s *matchService) load(ctx context.Context, spec SourceSpec, idColumn string) ([]models.Entry, error) {
	switch {
	case spec.Values != nil:
		return inlineEntries(spec), nil
	case spec.File != nil:
		entries, err := s.loadFile(*spec.File, idColumn)
		if err != nil {
			return nil, err
		}
		return nonEmpty(entries, spec.File.Column)
	default:
		entries, err := s.datasources.ReadColumn(ctx, *spec.Datasource, idColumn)
		if err != nil {
			return nil, err
		}
		return nonEmpty(entries, spec.Datasource.Column)
	}
}

func (s *matchService) loadFile(spec FileSpec, idColumn string) ([]models.Entry, error) {
	upload, err := s.uploads.Get(uuid.MustParse(spec.UploadID))
	if err != nil {
		return nil, err
	}
	table, err := sources.Read(bytes.NewReader(upload.Data), upload.Filename, spec.Sheet)
	if err != nil {
		return nil, err
	}
	return table.Entries(spec.Column, idColumn)
}

func inlineEntries(spec SourceSpec) []models.Entry {
	values := jsonutil.Strings(spec.Values)
	if spec.IDs == nil {
		return models.EntriesFromValues(values)
	}
	ids := jsonutil.Strings(spec.IDs)
	entries := make([]models.Entry, len(values))
	for i, v := range values {
		entries[i] = models.NewEntryWithID(v, ids[i])
	}
	return entries
}

func nonEmpty(entries []models.Entry, column string) ([]models.Entry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: column %s has no rows", apperrors.ErrEmptyDataset, column)
	}
	return entries, nil
}

// Ensure matchService implements MatchService at compile time.
var _ MatchService = (*matchService)(nil)
