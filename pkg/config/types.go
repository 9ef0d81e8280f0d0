package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// AppConfig is the configuration of the craig command line tool, read from
// a YAML file.
type AppConfig struct {
	// Document is the path of the configuration document the commands
	// operate on (.json, .yaml, .yml or .cue).
	Document string `yaml:"document" validate:"required"`

	// Prefix seeds the options object on init.
	Prefix string `yaml:"prefix" validate:"omitempty,max=16"`

	// Catalogs are declarative catalog files registered after the built-in
	// catalog.
	Catalogs []string `yaml:"catalogs,omitempty" validate:"dive,required"`

	// PolicyPaths are .rego files or directories of lint policies.
	PolicyPaths []string `yaml:"policy_paths,omitempty" validate:"dive,required"`

	// MaxPasses bounds ReconcileUntilStable.
	MaxPasses int `yaml:"max_passes" validate:"min=1,max=32"`

	// LogLevel is the zerolog level name.
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn error"`

	// Output is the default output format of describe and validate.
	Output string `yaml:"output" validate:"oneof=text json yaml cue"`

	// StarlarkTimeout bounds each declarative predicate evaluation.
	StarlarkTimeout time.Duration `yaml:"starlark_timeout" validate:"min=0"`

	Telemetry TelemetrySettings `yaml:"telemetry"`

	History HistorySettings `yaml:"history"`
}

// HistorySettings control the snapshot database behind backup, history and
// restore.
type HistorySettings struct {
	// Enabled records a snapshot on every document write.
	Enabled bool `yaml:"enabled"`

	// Path of the SQLite database. Empty means .craig-history.db next to
	// the document.
	Path string `yaml:"path,omitempty"`

	// Keep bounds the snapshots kept per document, 0 keeps all.
	Keep int `yaml:"keep" validate:"min=0"`

	// Events also journals telemetry events into the database.
	Events bool `yaml:"events,omitempty"`
}

// TelemetrySettings selects the metrics and tracing backends.
type TelemetrySettings struct {
	// Tracing is "none", "stdout" or "otlp".
	Tracing string `yaml:"tracing" validate:"oneof=none stdout otlp"`

	// OTLPEndpoint is the collector address for otlp tracing.
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Tracing otlp"`

	// MetricsAddress serves /metrics when set (e.g. ":9090").
	MetricsAddress string `yaml:"metrics_address,omitempty" validate:"omitempty,hostname_port"`
}

// DefaultAppConfig returns the configuration used when no file is given.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Document:        "craig.json",
		Prefix:          "iac",
		MaxPasses:       4,
		LogLevel:        "info",
		Output:          "text",
		StarlarkTimeout: time.Second,
		Telemetry: TelemetrySettings{
			Tracing: "none",
		},
		History: HistorySettings{
			Keep: 50,
		},
	}
}

// HistoryPath returns the snapshot database of the configured document.
func (c *AppConfig) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(filepath.Dir(c.Document), ".craig-history.db")
}

var configValidator = validator.New()

// Validate checks the configuration's struct tags.
func (c *AppConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadAppConfig reads a YAML configuration file over the defaults.
func LoadAppConfig(path string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParsedDocument is a document read from one or more source files.
type ParsedDocument struct {
	// Document is the decoded document. Nil when Errors is not empty.
	Document store.Document `json:"document,omitempty"`

	// SourceFiles are the files that were read.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when parsing finished.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors are parse errors with their locations.
	Errors []ValidationError `json:"errors,omitempty"`
}

// HasErrors reports whether parsing failed.
func (pd *ParsedDocument) HasErrors() bool {
	return len(pd.Errors) > 0
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty" yaml:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty" yaml:"column,omitempty"`

	// Path is the document path of the error (e.g., "vpcs.0.subnets").
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message" yaml:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" yaml:"severity" validate:"required,oneof=error warning info"`
}

func (ve ValidationError) String() string {
	loc := ve.Path
	if ve.File != "" {
		loc = fmt.Sprintf("%s:%d:%d", ve.File, ve.Line, ve.Column)
	}
	if loc == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output is the output data from Starlark.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
