// match-files matches a column of one spreadsheet or CSV file against a
// column of another and writes the results workbook.
//
// Usage: go run ./scripts/match-files [flags] <source-file> <target-file>
//
// Flags:
//
//	-source-column  Column to read from the source file (required)
//	-target-column  Column to read from the target file (required)
//	-source-sheet   Worksheet of the source file (default: first sheet)
//	-target-sheet   Worksheet of the target file (default: first sheet)
//	-id-column      Identifier column carried into the results (default: DataItemID)
//	-threshold      Minimum confidence for a match, 0-100 (default: 70)
//	-exclusive      Let each target be matched by at most one source value
//	-workers        Parallel best-candidate searches (default: 1)
//	-wordnet        WordNet dict directory for lexical synonyms (default: /usr/share/wordnet)
//	-inflections    Add singular and plural forms as synonyms (default: true)
//	-thesaurus      YAML synonym groups file
//	-abbreviations  YAML abbreviations file replacing the built-in table
//	-out            Output path, .xlsx or .csv (default: fuzzy_matching_results_<timestamp>.xlsx)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/export"
	"github.com/ekaya-inc/ekaya-match/pkg/lexicon"
	"github.com/ekaya-inc/ekaya-match/pkg/logging"
	"github.com/ekaya-inc/ekaya-match/pkg/matcher"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
	"github.com/ekaya-inc/ekaya-match/pkg/similarity"
	"github.com/ekaya-inc/ekaya-match/pkg/sources"
	"github.com/ekaya-inc/ekaya-match/pkg/terms"
)

func main() {
	sourceColumn := flag.String("source-column", "", "Column to read from the source file")
	targetColumn := flag.String("target-column", "", "Column to read from the target file")
	sourceSheet := flag.String("source-sheet", "", "Worksheet of the source file")
	targetSheet := flag.String("target-sheet", "", "Worksheet of the target file")
	idColumn := flag.String("id-column", "DataItemID", "Identifier column carried into the results")
	threshold := flag.Int("threshold", models.DefaultThreshold, "Minimum confidence for a match (0-100)")
	exclusive := flag.Bool("exclusive", false, "Let each target be matched by at most one source value")
	workers := flag.Int("workers", 1, "Parallel best-candidate searches (0 = all CPUs)")
	wordnetDir := flag.String("wordnet", "/usr/share/wordnet", "WordNet dict directory (empty disables WordNet)")
	inflections := flag.Bool("inflections", true, "Add singular and plural forms as synonyms")
	thesaurusPath := flag.String("thesaurus", "", "YAML synonym groups file")
	abbreviationsPath := flag.String("abbreviations", "", "YAML abbreviations file")
	out := flag.String("out", "", "Output path (.xlsx or .csv)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 || *sourceColumn == "" || *targetColumn == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -source-column NAME -target-column NAME [flags] <source-file> <target-file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger("local", level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *workers == 0 {
		*workers = runtime.NumCPU()
	}

	source, err := readColumn(args[0], *sourceSheet, *sourceColumn, *idColumn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Source: %v\n", err)
		os.Exit(1)
	}
	target, err := readColumn(args[1], *targetSheet, *targetColumn, *idColumn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Target: %v\n", err)
		os.Exit(1)
	}

	abbreviations := terms.DefaultAbbreviationTable()
	if *abbreviationsPath != "" {
		if abbreviations, err = terms.LoadAbbreviations(*abbreviationsPath); err != nil {
			fmt.Fprintf(os.Stderr, "Abbreviations: %v\n", err)
			os.Exit(1)
		}
	}
	lex := lexicon.Load(lexicon.Options{WordNetDir: *wordnetDir, ThesaurusPath: *thesaurusPath, Inflections: *inflections}, logger)
	m := matcher.New(similarity.NewScorer(terms.NewExpander(abbreviations, lex)), logger)

	start := time.Now()
	result, err := m.Match(ctx, source, target, matcher.Options{
		Threshold:        *threshold,
		Workers:          *workers,
		ExclusiveTargets: *exclusive,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Matching failed: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("Matched", zap.Duration("duration", time.Since(start)))

	report := export.NewReport(result, *idColumn)
	path := *out
	if path == "" {
		path = export.FileName(time.Now())
	}
	if err := writeReport(path, report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("Source values: %d, target values: %d, threshold: %d\n", len(source), len(target), *threshold)
	for _, row := range export.SummaryRows(report.Summary) {
		fmt.Printf("  %-32s %s\n", row[0], row[1])
	}
	fmt.Printf("Results written to %s\n", path)
}

func readColumn(path, sheet, column, idColumn string) ([]models.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := sources.Read(f, filepath.Base(path), sheet)
	if err != nil {
		return nil, err
	}
	entries, err := table.Entries(column, idColumn)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("column %s of %s has no rows", column, path)
	}
	return entries, nil
}

func writeReport(path string, report export.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		err = export.WriteCSV(f, report.Records, report.IDColumn)
	} else {
		err = export.WriteWorkbook(f, report)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
