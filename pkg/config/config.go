package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for ekaya-match.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Datasource credentials are never part of the config; they arrive with each request.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Logging    LoggingConfig    `yaml:"logging"`
	Matching   MatchingConfig   `yaml:"matching"`
	Lexicon    LexiconConfig    `yaml:"lexicon"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Upload     UploadConfig     `yaml:"upload"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is a zap level name (debug, info, warn, error). Empty uses the env default.
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:""`
}

// MatchingConfig holds defaults applied when a request leaves them unset.
type MatchingConfig struct {
	// Threshold is the minimum confidence (0-100) for a Match.
	Threshold int `yaml:"threshold" env:"MATCH_THRESHOLD" env-default:"70"`
	// IDColumn names the identifier column carried through to match records.
	IDColumn string `yaml:"id_column" env:"MATCH_ID_COLUMN" env-default:"DataItemID"`
	// Workers bounds parallel best-candidate searches. 1 keeps the run single-threaded.
	Workers int `yaml:"workers" env:"MATCH_WORKERS" env-default:"1"`
	// ExclusiveTargets lets each target be claimed by at most one forward match.
	ExclusiveTargets bool `yaml:"exclusive_targets" env:"MATCH_EXCLUSIVE_TARGETS" env-default:"false"`
}

// LexiconConfig points at the optional language data used for synonym expansion.
// Every path is optional; missing or unreadable data degrades to no lexical synonyms.
type LexiconConfig struct {
	// WordNetDir is a directory holding the WordNet data.noun/verb/adj/adv files.
	// The default is where the wordnet-base package installs them.
	WordNetDir string `yaml:"wordnet_dir" env:"WORDNET_DIR" env-default:"/usr/share/wordnet"`
	// ThesaurusPath is a YAML file of synonym groups.
	ThesaurusPath string `yaml:"thesaurus_path" env:"THESAURUS_PATH" env-default:""`
	// AbbreviationsPath replaces the built-in abbreviation table.
	AbbreviationsPath string `yaml:"abbreviations_path" env:"ABBREVIATIONS_PATH" env-default:""`
	// Inflections adds singular/plural forms of each token as synonyms.
	Inflections bool `yaml:"inflections" env:"LEXICON_INFLECTIONS" env-default:"true"`
}

// DatasourceConfig holds limits applied when reading columns from SQL datasources.
type DatasourceConfig struct {
	// QueryTimeoutSeconds bounds each column read.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"DATASOURCE_QUERY_TIMEOUT_SECONDS" env-default:"30"`
	// MaxRows caps the number of values read from one column.
	MaxRows int `yaml:"max_rows" env:"DATASOURCE_MAX_ROWS" env-default:"50000"`
	// SQLiteDir confines sqlite datasource paths to one directory. Empty
	// disables the sqlite datasource.
	SQLiteDir string `yaml:"sqlite_dir" env:"DATASOURCE_SQLITE_DIR" env-default:""`
}

// UploadConfig limits multipart uploads.
type UploadConfig struct {
	MaxUploadMB int64 `yaml:"max_upload_mb" env:"UPLOAD_MAX_MB" env-default:"32"`
	// TTLMinutes is how long an uploaded file stays referenceable.
	TTLMinutes int `yaml:"ttl_minutes" env:"UPLOAD_TTL_MINUTES" env-default:"30"`
	// MaxFiles caps retained uploads; the least recently used is evicted first.
	MaxFiles int `yaml:"max_files" env:"UPLOAD_MAX_FILES" env-default:"64"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(DefaultConfigFile); err == nil {
		if err := cleanenv.ReadConfig(DefaultConfigFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", DefaultConfigFile, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges that cleanenv cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 100 {
		errs = append(errs, fmt.Errorf("matching.threshold must be between 0 and 100, got %d", c.Matching.Threshold))
	}
	if c.Matching.Workers < 1 {
		errs = append(errs, fmt.Errorf("matching.workers must be at least 1, got %d", c.Matching.Workers))
	}
	if c.Datasource.QueryTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("datasource.query_timeout_seconds must be positive"))
	}
	if c.Datasource.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("datasource.max_rows must be positive"))
	}
	if c.Upload.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_upload_mb must be positive"))
	}
	if c.Upload.TTLMinutes <= 0 || c.Upload.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("upload.ttl_minutes and upload.max_files must be positive"))
	}
	return errors.Join(errs...)
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}
