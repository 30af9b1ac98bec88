package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-match/pkg/config"
	"github.com/ekaya-inc/ekaya-match/pkg/handlers"
	"github.com/ekaya-inc/ekaya-match/pkg/lexicon"
	"github.com/ekaya-inc/ekaya-match/pkg/logging"
	"github.com/ekaya-inc/ekaya-match/pkg/matcher"
	"github.com/ekaya-inc/ekaya-match/pkg/middleware"
	"github.com/ekaya-inc/ekaya-match/pkg/services"
	"github.com/ekaya-inc/ekaya-match/pkg/similarity"
	"github.com/ekaya-inc/ekaya-match/pkg/terms"
	"github.com/ekaya-inc/ekaya-match/ui"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Int("threshold", cfg.Matching.Threshold),
		zap.String("id_column", cfg.Matching.IDColumn),
		zap.Int("workers", cfg.Matching.Workers),
		zap.Bool("exclusive_targets", cfg.Matching.ExclusiveTargets))

	expander, err := newExpander(cfg.Lexicon, logger)
	if err != nil {
		return err
	}
	m := matcher.New(similarity.NewScorer(expander), logger)

	uploads := services.NewUploadStore(cfg.Upload.MaxFiles, time.Duration(cfg.Upload.TTLMinutes)*time.Minute)
	uploads.StartCleanup(ctx, time.Minute)

	datasourceService := services.NewDatasourceService(
		datasource.NewDatasourceAdapterFactory(datasource.AdapterOptions{SQLiteDir: cfg.Datasource.SQLiteDir}, logger.Named("adapter")),
		cfg.Datasource, logger)
	matchService := services.NewMatchService(m, datasourceService, uploads, cfg.Matching, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewDatasourcesHandler(datasourceService, logger).RegisterRoutes(mux)
	handlers.NewMatchHandler(matchService, cfg.Upload.MaxUploadMB<<20, logger).RegisterRoutes(mux)

	uiHandler, err := ui.Handler()
	if err != nil {
		return err
	}
	mux.Handle("GET /", uiHandler)

	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger.Named("http"))(handler)
	handler = middleware.Recoverer(logger)(handler)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-match",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newExpander builds the term expander from the abbreviation table and any
// configured lexical sources.
func newExpander(cfg config.LexiconConfig, logger *zap.Logger) (*terms.Expander, error) {
	abbreviations := terms.DefaultAbbreviationTable()
	if cfg.AbbreviationsPath != "" {
		loaded, err := terms.LoadAbbreviations(cfg.AbbreviationsPath)
		if err != nil {
			return nil, fmt.Errorf("load abbreviations: %w", err)
		}
		abbreviations = loaded
	}

	lex := lexicon.Load(lexicon.Options{
		WordNetDir:    cfg.WordNetDir,
		ThesaurusPath: cfg.ThesaurusPath,
		Inflections:   cfg.Inflections,
	}, logger)

	logger.Info("Term expansion ready", zap.Int("abbreviations", abbreviations.Len()))
	return terms.NewExpander(abbreviations, lex), nil
}
