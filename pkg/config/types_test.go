package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultAppConfig(t *testing.T) {
	cfg := DefaultAppConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.MaxPasses != 4 || cfg.StarlarkTimeout != time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(*testing.T, *AppConfig)
	}{
		{
			name: "overrides defaults",
			content: `
document: landing-zone.yaml
prefix: slz
catalogs: [dns.yaml]
policy_paths: [policies]
max_passes: 8
log_level: debug
output: yaml
starlark_timeout: 250ms
telemetry:
  tracing: stdout
  metrics_address: ":9090"
`,
			check: func(t *testing.T, cfg *AppConfig) {
				if cfg.Document != "landing-zone.yaml" || cfg.Prefix != "slz" {
					t.Errorf("unexpected document settings: %+v", cfg)
				}
				if cfg.MaxPasses != 8 || cfg.StarlarkTimeout != 250*time.Millisecond {
					t.Errorf("unexpected numeric settings: %+v", cfg)
				}
				if cfg.Telemetry.Tracing != "stdout" || cfg.Telemetry.MetricsAddress != ":9090" {
					t.Errorf("unexpected telemetry settings: %+v", cfg.Telemetry)
				}
			},
		},
		{
			name:    "partial file keeps defaults",
			content: "prefix: dev\n",
			check: func(t *testing.T, cfg *AppConfig) {
				if cfg.Document != "craig.json" || cfg.LogLevel != "info" {
					t.Errorf("expected defaults to survive, got %+v", cfg)
				}
			},
		},
		{
			name:    "history",
			content: "history:\n  enabled: true\n  path: /tmp/h.db\n  keep: 5\n  events: true\n",
			check: func(t *testing.T, cfg *AppConfig) {
				if !cfg.History.Enabled || !cfg.History.Events || cfg.History.Keep != 5 {
					t.Errorf("unexpected history settings: %+v", cfg.History)
				}
				if cfg.HistoryPath() != "/tmp/h.db" {
					t.Errorf("expected configured history path, got %q", cfg.HistoryPath())
				}
			},
		},
		{name: "negative keep", content: "history:\n  keep: -1\n", wantErr: true},
		{name: "bad log level", content: "log_level: loud\n", wantErr: true},
		{name: "bad output", content: "output: xml\n", wantErr: true},
		{name: "too many passes", content: "max_passes: 100\n", wantErr: true},
		{name: "otlp needs an endpoint", content: "telemetry:\n  tracing: otlp\n", wantErr: true},
		{name: "empty catalog path", content: "catalogs: [\"\"]\n", wantErr: true},
		{name: "not yaml", content: "document: [\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "craig.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := LoadAppConfig(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadAppConfig_NoFile(t *testing.T) {
	cfg, err := LoadAppConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Document != "craig.json" {
		t.Errorf("expected default document, got %q", cfg.Document)
	}

	if _, err := LoadAppConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidationError_String(t *testing.T) {
	tests := []struct {
		ve   ValidationError
		want string
	}{
		{ValidationError{File: "a.cue", Line: 3, Column: 7, Message: "conflict"}, "a.cue:3:7: conflict"},
		{ValidationError{Path: "vpcs.0.name", Message: "incomplete"}, "vpcs.0.name: incomplete"},
		{ValidationError{Message: "bare"}, "bare"},
	}
	for _, tt := range tests {
		if got := tt.ve.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestAppConfig_HistoryPath(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Document = filepath.Join("zones", "prod.yaml")
	if got, want := cfg.HistoryPath(), filepath.Join("zones", ".craig-history.db"); got != want {
		t.Errorf("HistoryPath() = %q, want %q", got, want)
	}
	if cfg.History.Enabled || cfg.History.Keep != 50 {
		t.Errorf("unexpected history defaults: %+v", cfg.History)
	}
}
