package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/IBM/CRAIG-sub005/pkg/catalog"
	"github.com/IBM/CRAIG-sub005/pkg/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{
		"encryption",
		"entity-naming",
		"ssh-keys",
		"subnet-overlap",
		"unknown-collections",
	}
	if len(policies) != len(expected) {
		t.Fatalf("expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, p := range policies {
		if p.Name != expected[i] {
			t.Errorf("policy %d: expected %s, got %s", i, expected[i], p.Name)
		}
		if p.Source != SourceBuiltin || !p.Enabled {
			t.Errorf("policy %s should be an enabled builtin", p.Name)
		}
	}
}

func TestEvaluate_SeededDocument(t *testing.T) {
	s, err := catalog.New()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := catalog.Seed(s, "slz"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	eng := newTestEngine(t)
	result, err := eng.Evaluate(context.Background(), s.Snapshot(), nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if !result.Allowed {
		t.Errorf("expected seeded document to be allowed, got %+v", result.Blocking())
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected evaluation warnings: %v", result.Warnings)
	}
	if len(result.EvaluatedPolicies) != 5 {
		t.Errorf("expected 5 evaluated policies, got %v", result.EvaluatedPolicies)
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "ssh-keys" && v.Entity == "ssh_keys/ssh-key" && v.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("expected placeholder key warning, got %+v", result.Violations)
	}
}

func TestEvaluate_BuiltinPolicies(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name        string
		doc         store.Document
		wantAllowed bool
		wantPolicy  string
		wantEntity  string
		wantSev     Severity
	}{
		{
			name: "uppercase name",
			doc: store.Document{
				"vpcs": []interface{}{map[string]interface{}{"name": "Management_VPC"}},
			},
			wantAllowed: false,
			wantPolicy:  "entity-naming",
			wantEntity:  "vpcs/Management_VPC",
			wantSev:     SeverityError,
		},
		{
			name: "bad sub-entity name",
			doc: store.Document{
				"vpcs": []interface{}{map[string]interface{}{
					"name":    "management",
					"subnets": []interface{}{map[string]interface{}{"name": "-zone-1"}},
				}},
			},
			wantAllowed: false,
			wantPolicy:  "entity-naming",
			wantEntity:  "vpcs.subnets/management/-zone-1",
			wantSev:     SeverityError,
		},
		{
			name: "long prefixed name",
			doc: store.Document{
				"options": map[string]interface{}{"prefix": "slz"},
				"vpcs":    []interface{}{map[string]interface{}{"name": strings.Repeat("a", 61)}},
			},
			wantAllowed: true,
			wantPolicy:  "entity-naming",
			wantEntity:  "vpcs/" + strings.Repeat("a", 61),
			wantSev:     SeverityWarning,
		},
		{
			name: "unencrypted bucket",
			doc: store.Document{
				"object_storage": []interface{}{map[string]interface{}{
					"name":    "cos",
					"buckets": []interface{}{map[string]interface{}{"name": "logs", "kms_key": nil, "allow_unencrypted": false}},
				}},
			},
			wantAllowed: false,
			wantPolicy:  "encryption",
			wantEntity:  "object_storage.buckets/cos/logs",
			wantSev:     SeverityError,
		},
		{
			name: "bucket allowed unencrypted",
			doc: store.Document{
				"object_storage": []interface{}{map[string]interface{}{
					"name":    "cos",
					"buckets": []interface{}{map[string]interface{}{"name": "logs", "kms_key": nil, "allow_unencrypted": true}},
				}},
			},
			wantAllowed: true,
			wantPolicy:  "encryption",
			wantEntity:  "object_storage.buckets/cos/logs",
			wantSev:     SeverityWarning,
		},
		{
			name: "vsi without ssh keys",
			doc: store.Document{
				"vsi": []interface{}{map[string]interface{}{"name": "server", "ssh_keys": []interface{}{}, "encryption_key": "key"}},
			},
			wantAllowed: false,
			wantPolicy:  "ssh-keys",
			wantEntity:  "vsi/server",
			wantSev:     SeverityError,
		},
		{
			name: "overlapping subnets",
			doc: store.Document{
				"vpcs": []interface{}{map[string]interface{}{
					"name": "management",
					"subnets": []interface{}{
						map[string]interface{}{"name": "wide", "cidr": "10.0.0.0/16"},
						map[string]interface{}{"name": "narrow", "cidr": "10.0.1.0/24"},
					},
				}},
			},
			wantAllowed: false,
			wantPolicy:  "subnet-overlap",
			wantEntity:  "vpcs.subnets/management/narrow",
			wantSev:     SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), tt.doc, &EvalContext{Operation: "test"})
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}

			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (violations %+v)", result.Allowed, tt.wantAllowed, result.Violations)
			}

			found := false
			for _, v := range result.Violations {
				if v.Policy == tt.wantPolicy && v.Entity == tt.wantEntity && v.Severity == tt.wantSev {
					found = true
					if v.Message == "" {
						t.Error("violation has no message")
					}
				}
			}
			if !found {
				t.Errorf("expected %s %s violation for %s, got %+v", tt.wantSev, tt.wantPolicy, tt.wantEntity, result.Violations)
			}
		})
	}
}

func TestEvaluate_ValidSubnetsDoNotOverlap(t *testing.T) {
	eng := newTestEngine(t)

	doc := store.Document{
		"vpcs": []interface{}{map[string]interface{}{
			"name": "management",
			"subnets": []interface{}{
				map[string]interface{}{"name": "zone-1", "cidr": "10.10.10.0/24"},
				map[string]interface{}{"name": "zone-2", "cidr": "10.20.10.0/24"},
				map[string]interface{}{"name": "broken", "cidr": "not-a-cidr"},
			},
		}},
	}

	result, err := eng.Evaluate(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	for _, v := range result.Violations {
		if v.Policy == "subnet-overlap" {
			t.Errorf("unexpected overlap violation: %+v", v)
		}
	}
}

func TestEngine_SetData(t *testing.T) {
	eng := newTestEngine(t)
	doc := store.Document{"vpcs": []interface{}{}, "notes": "free text"}

	result, err := eng.Evaluate(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Errorf("expected no violations without data, got %+v", result.Violations)
	}

	err = eng.SetData(context.Background(), map[string]interface{}{
		"craig": map[string]interface{}{
			"types": []interface{}{"vpcs"},
		},
	})
	if err != nil {
		t.Fatalf("SetData failed: %v", err)
	}

	result, err = eng.Evaluate(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Violations) != 1 || result.Violations[0].Entity != "notes" {
		t.Errorf("expected one unknown collection violation, got %+v", result.Violations)
	}
	if !result.Allowed {
		t.Error("unknown collections should only warn")
	}
}

func TestEngine_AddPolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	custom := Policy{
		Name:     "cold-buckets",
		Severity: SeverityInfo,
		Enabled:  true,
		Rego: `package craig.custom.buckets

import rego.v1

deny contains msg if {
	some cos in input.document.object_storage
	some bucket in cos.buckets
	bucket.storage_class != "cold"
	msg := sprintf("bucket %s is not cold", [bucket.name])
}
`,
	}
	if err := eng.AddPolicies(ctx, []Policy{custom}); err != nil {
		t.Fatalf("AddPolicies failed: %v", err)
	}

	doc := store.Document{
		"object_storage": []interface{}{map[string]interface{}{
			"name":    "cos",
			"buckets": []interface{}{map[string]interface{}{"name": "logs", "kms_key": "key", "storage_class": "standard"}},
		}},
	}
	result, err := eng.Evaluate(ctx, doc, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	var got *Violation
	for i := range result.Violations {
		if result.Violations[i].Policy == "cold-buckets" {
			got = &result.Violations[i]
		}
	}
	if got == nil {
		t.Fatalf("expected custom violation, got %+v", result.Violations)
	}
	if got.Message != "bucket logs is not cold" || got.Severity != SeverityInfo {
		t.Errorf("unexpected violation %+v", got)
	}

	broken := Policy{Name: "broken", Rego: "package broken\ndeny contains x if {"}
	if err := eng.AddPolicies(ctx, []Policy{broken}); err == nil {
		t.Error("expected compile error")
	}
	if _, err := eng.GetPolicy("broken"); err == nil {
		t.Error("broken policy must not be added")
	}
}

func TestEngine_ReplacePolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	first := Policy{Name: "first", Enabled: true, Rego: "package first\n\nimport rego.v1\n\ndeny contains \"first\" if { true }\n"}
	second := Policy{Name: "second", Enabled: true, Rego: "package second\n\nimport rego.v1\n\ndeny contains \"second\" if { true }\n"}

	if err := eng.AddPolicies(ctx, []Policy{first}); err != nil {
		t.Fatalf("AddPolicies failed: %v", err)
	}
	if err := eng.ReplacePolicies(ctx, []Policy{second}); err != nil {
		t.Fatalf("ReplacePolicies failed: %v", err)
	}

	if _, err := eng.GetPolicy("first"); err == nil {
		t.Error("expected first policy to be replaced")
	}
	if _, err := eng.GetPolicy("second"); err != nil {
		t.Errorf("expected second policy: %v", err)
	}
	if _, err := eng.GetPolicy("entity-naming"); err != nil {
		t.Errorf("builtins must survive a replace: %v", err)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.DisablePolicy("ssh-keys"); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	policy, err := eng.GetPolicy("ssh-keys")
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}
	if policy.Enabled {
		t.Error("Policy should be disabled")
	}

	doc := store.Document{"vsi": []interface{}{map[string]interface{}{"name": "server", "encryption_key": "key"}}}
	result, err := eng.Evaluate(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("disabled policy must not block, got %+v", result.Violations)
	}

	if err := eng.EnablePolicy("ssh-keys"); err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}
	result, err = eng.Evaluate(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Allowed {
		t.Error("expected vsi without keys to be blocked once enabled")
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestReloadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	extra := Policy{Name: "extra", Enabled: true, Rego: "package extra\n\nimport rego.v1\n\ndeny contains \"x\" if { false }\n"}
	if err := eng.AddPolicies(ctx, []Policy{extra}); err != nil {
		t.Fatalf("AddPolicies failed: %v", err)
	}
	if err := eng.ReloadPolicies(ctx); err != nil {
		t.Fatalf("ReloadPolicies failed: %v", err)
	}
	if len(eng.ListPolicies()) != 5 {
		t.Errorf("expected only builtins after reload, got %d", len(eng.ListPolicies()))
	}
}

func TestResultSummary(t *testing.T) {
	r := &Result{
		EvaluatedPolicies: []string{"a", "b"},
		Violations: []Violation{
			{Policy: "a", Severity: SeverityError},
			{Policy: "a", Severity: SeverityWarning},
			{Policy: "b", Severity: SeverityWarning},
		},
		Warnings: []string{"c failed"},
	}

	s := r.Summary()
	if s.TotalPolicies != 2 || s.TotalViolations != 3 || s.FailedPolicies != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.ViolationsBySeverity[SeverityWarning] != 2 || s.ViolationsBySeverity[SeverityError] != 1 {
		t.Errorf("unexpected severity counts %+v", s.ViolationsBySeverity)
	}
	if len(r.Blocking()) != 1 {
		t.Errorf("expected one blocking violation, got %+v", r.Blocking())
	}
}

func TestCreateViolation(t *testing.T) {
	policy := &Policy{Name: "p", Severity: SeverityWarning}

	v := createViolation(policy, map[string]interface{}{
		"message":  "m",
		"severity": "critical",
		"entity":   "vpcs/a",
		"field":    "name",
	})
	if v.Message != "m" || v.Severity != SeverityCritical || v.Entity != "vpcs/a" {
		t.Errorf("unexpected violation %+v", v)
	}
	if v.Details["field"] != "name" {
		t.Errorf("expected extra keys in details, got %+v", v.Details)
	}

	v = createViolation(policy, "plain")
	if v.Message != "plain" || v.Severity != SeverityWarning {
		t.Errorf("unexpected violation %+v", v)
	}
}
