package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const coldBucketsRego = `# Buckets should use the cold storage class.
# severity: info
# tags: storage, cost
package craig.custom.buckets

import rego.v1

deny contains msg if {
	some cos in input.document.object_storage
	some bucket in cos.buckets
	bucket.storage_class != "cold"
	msg := sprintf("bucket %s is not cold", [bucket.name])
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	policyFile := filepath.Join(t.TempDir(), "cold-buckets.rego")
	writeFile(t, policyFile, coldBucketsRego)

	policy, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "cold-buckets" {
		t.Errorf("Expected name 'cold-buckets', got '%s'", policy.Name)
	}
	if policy.Description != "Buckets should use the cold storage class." {
		t.Errorf("Unexpected description %q", policy.Description)
	}
	if policy.Severity != SeverityInfo {
		t.Errorf("Expected severity info, got %s", policy.Severity)
	}
	if len(policy.Tags) != 2 || policy.Tags[0] != "storage" || policy.Tags[1] != "cost" {
		t.Errorf("Unexpected tags %v", policy.Tags)
	}
	if policy.Source != policyFile || !policy.Enabled {
		t.Errorf("Unexpected source or state: %+v", policy)
	}
}

func TestLoadFromFile_Definitions(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	tests := []struct {
		name        string
		file        string
		content     string
		wantEnabled bool
		wantSev     Severity
		wantErr     bool
	}{
		{
			name:        "json",
			file:        "policy.json",
			content:     `{"name": "json-policy", "severity": "error", "rego": "package p\ndeny[msg] { false; msg := \"x\" }"}`,
			wantEnabled: true,
			wantSev:     SeverityError,
		},
		{
			name:        "yaml disabled",
			file:        "policy.yaml",
			content:     "name: yaml-policy\nenabled: false\nrego: |\n  package p\n  deny[msg] { false; msg := \"x\" }\n",
			wantEnabled: false,
			wantSev:     SeverityWarning,
		},
		{
			name:    "invalid json",
			file:    "bad.json",
			content: "invalid json",
			wantErr: true,
		},
		{
			name:    "missing rego",
			file:    "empty.yml",
			content: "name: empty\n",
			wantErr: true,
		},
		{
			name:    "bad severity",
			file:    "loud.yaml",
			content: "name: loud\nseverity: loud\nrego: package p\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			policy, err := loader.loadFromFile(context.Background(), path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if policy.Enabled != tt.wantEnabled {
				t.Errorf("Enabled = %v, want %v", policy.Enabled, tt.wantEnabled)
			}
			if policy.Severity != tt.wantSev {
				t.Errorf("Severity = %s, want %s", policy.Severity, tt.wantSev)
			}
		})
	}
}

func TestLoadFromDirectory_Recursive(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.rego"), "package a\ndeny[msg] { false; msg := \"a\" }")
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), "package b\ndeny[msg] { false; msg := \"b\" }")
	writeFile(t, filepath.Join(dir, "nested", "README.md"), "not a policy")
	writeFile(t, filepath.Join(dir, "broken.json"), "{")

	policies, err := loader.loadFromDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("Expected 2 policies, got %d", len(policies))
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	file := filepath.Join(dir, "single.rego")
	writeFile(t, file, "package single\ndeny[msg] { false; msg := \"x\" }")
	sub := filepath.Join(dir, "more")
	writeFile(t, filepath.Join(sub, "one.rego"), "package one\ndeny[msg] { false; msg := \"x\" }")

	policies, err := loader.LoadFromPaths(context.Background(), []string{file, sub})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("Expected 2 policies, got %d", len(policies))
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("Expected error for non-existent path")
	}
}

func TestLoadBundle(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	path := filepath.Join(dir, "bundle.yaml")
	writeFile(t, path, `name: landing-zone
version: "1.0"
policies:
  - name: one
    enabled: true
    rego: |
      package one
      deny[msg] { false; msg := "x" }
  - name: two
    severity: error
    rego: |
      package two
      deny[msg] { false; msg := "x" }
`)

	bundle, err := loader.LoadBundle(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load bundle: %v", err)
	}
	if bundle.Name != "landing-zone" || bundle.Version != "1.0" {
		t.Errorf("Unexpected bundle %s %s", bundle.Name, bundle.Version)
	}
	if len(bundle.Policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(bundle.Policies))
	}
	if bundle.Policies[0].Severity != SeverityWarning || bundle.Policies[1].Severity != SeverityError {
		t.Errorf("Unexpected severities %s %s", bundle.Policies[0].Severity, bundle.Policies[1].Severity)
	}

	badPath := filepath.Join(dir, "bad.json")
	writeFile(t, badPath, `{"name": "bad", "policies": [{"name": "no-rego"}]}`)
	if _, err := loader.LoadBundle(context.Background(), badPath); err == nil {
		t.Error("Expected validation error for policy without rego")
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
		severity Severity
	}{
		{
			name:     "single line comment",
			content:  "# This is a test policy\npackage test",
			expected: "This is a test policy",
			severity: SeverityWarning,
		},
		{
			name:     "multi line comments",
			content:  "# This is a test policy\n# that spans multiple lines\npackage test",
			expected: "This is a test policy that spans multiple lines",
			severity: SeverityWarning,
		},
		{
			name:     "no comments",
			content:  "package test\ndeny[msg] { false }",
			expected: "",
			severity: SeverityWarning,
		},
		{
			name:     "severity line",
			content:  "# First line\n#\n# Severity: Critical\n# Second line\npackage test",
			expected: "First line Second line",
			severity: SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parseRegoFile("test.rego", []byte(tt.content))
			if p.Description != tt.expected {
				t.Errorf("Expected description '%s', got '%s'", tt.expected, p.Description)
			}
			if p.Severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, p.Severity)
			}
		})
	}
}

func TestClearCache(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	policyFile := filepath.Join(t.TempDir(), "test.rego")
	writeFile(t, policyFile, "package test\ndeny[msg] { false }")

	if _, err := loader.loadFromFile(context.Background(), policyFile); err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if len(loader.cache) != 1 {
		t.Errorf("Expected 1 cache entry, got %d", len(loader.cache))
	}

	loader.ClearCache()

	if len(loader.cache) != 0 {
		t.Errorf("Expected 0 cache entries after clear, got %d", len(loader.cache))
	}
}

func TestLoadFromFile_UnsupportedType(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	policyFile := filepath.Join(t.TempDir(), "test.txt")
	writeFile(t, policyFile, "not a policy")

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Error("Expected error for unsupported file type")
	}
}

func TestEngine_Watch(t *testing.T) {
	dir := t.TempDir()
	policyFile := filepath.Join(dir, "custom.rego")
	writeFile(t, policyFile, "package custom\n\nimport rego.v1\n\ndeny contains \"first\" if { true }\n")

	eng := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader, err := eng.Watch(ctx, []string{dir})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer loader.StopWatching()

	if _, err := eng.GetPolicy("custom"); err != nil {
		t.Fatalf("expected initial load: %v", err)
	}

	writeFile(t, filepath.Join(dir, "second.rego"), "package second\n\nimport rego.v1\n\ndeny contains \"second\" if { true }\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := eng.GetPolicy("second"); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("policy added on disk was not loaded")
}
