package config

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

func TestStarlarkEvaluator_Evaluate(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name      string
		script    string
		input     map[string]interface{}
		checkFunc func(*testing.T, *StarlarkResult)
		wantErr   bool
	}{
		{
			name:   "subnet names per zone",
			script: `subnets = [prefix + "-zone-" + str(z) for z in range(1, zones + 1)]`,
			input:  map[string]interface{}{"prefix": "vsi", "zones": 3},
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				subnets, ok := sr.Output["subnets"].([]interface{})
				if !ok {
					t.Fatalf("expected subnets to be a list, got %T", sr.Output["subnets"])
				}
				if len(subnets) != 3 || subnets[2] != "vsi-zone-3" {
					t.Errorf("unexpected subnets: %v", subnets)
				}
			},
		},
		{
			name: "cidr plan from a function",
			script: `
def plan(base, zones):
    out = {}
    for z in range(1, zones + 1):
        out["zone-" + str(z)] = "10." + str(base) + "." + str(z * 10) + ".0/24"
    return out

cidrs = plan(20, 2)
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				cidrs, ok := sr.Output["cidrs"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected cidrs to be a dict, got %T", sr.Output["cidrs"])
				}
				if cidrs["zone-2"] != "10.20.20.0/24" {
					t.Errorf("expected zone-2 cidr 10.20.20.0/24, got %v", cidrs["zone-2"])
				}
			},
		},
		{
			name:   "entity input",
			script: `count = len(vpc["subnets"])`,
			input: map[string]interface{}{
				"vpc": store.Entity{
					"name":    "management",
					"subnets": []store.Entity{{"name": "a"}, {"name": "b"}},
				},
			},
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["count"] != int64(2) {
					t.Errorf("expected count=2, got %v", sr.Output["count"])
				}
			},
		},
		{
			name: "enumerate and zip",
			script: `
zones = [z for _, z in enumerate(["1", "2"])]
pairs = [a + "=" + b for a, b in zip(["x", "y"], zones)]
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				pairs, _ := sr.Output["pairs"].([]interface{})
				if len(pairs) != 2 || pairs[1] != "y=2" {
					t.Errorf("unexpected pairs: %v", pairs)
				}
			},
		},
		{
			name:   "private globals are dropped",
			script: "_tmp = 1\nvisible = _tmp + 1\n",
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if _, ok := sr.Output["_tmp"]; ok {
					t.Error("expected _tmp to be omitted")
				}
				if sr.Output["visible"] != int64(2) {
					t.Errorf("expected visible=2, got %v", sr.Output["visible"])
				}
			},
		},
		{
			name:    "syntax error",
			script:  "subnets = [",
			wantErr: true,
		},
		{
			name:    "runtime error",
			script:  "result = missing_name",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, tt.script, tt.input)

			if tt.wantErr {
				if err == nil && result.Error == "" {
					t.Errorf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Error != "" {
				t.Fatalf("unexpected result error: %s", result.Error)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, result)
			}
		})
	}
}

func TestStarlarkEvaluator_Timeout(t *testing.T) {
	evaluator := NewStarlarkEvaluator(50 * time.Millisecond)

	script := `
def spin():
    total = 0
    for i in range(5000):
        for j in range(5000):
            total = total + j
    return total

output = spin()
`

	result, err := evaluator.Evaluate(context.Background(), script, nil)
	if err == nil {
		t.Error("expected timeout error")
	}
	if result != nil && result.Error == "" {
		t.Error("expected timeout error in result")
	}
}

func TestStarlarkEvaluator_Print(t *testing.T) {
	evaluator := NewStarlarkEvaluator(time.Second)

	result, err := evaluator.Evaluate(context.Background(), "print(\"hidden\")\nresult = \"done\"\n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output["result"] != "done" {
		t.Errorf("expected result='done', got %v", result.Output["result"])
	}
}

func TestStarlarkEvaluator_Expressions(t *testing.T) {
	s := store.New()
	if err := s.Register("vpcs", store.FieldDefinition{
		Fields: []*store.FieldSpec{{Name: "name"}},
		SubComponents: []*store.FieldDefinition{
			{Name: "subnets", Fields: []*store.FieldSpec{{Name: "name"}}},
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	vpcs := s.MustType("vpcs")
	vpcs.Create(store.Entity{"name": "management"}, store.Options{})
	vpcs.MustSub("subnets").Create(store.Entity{"name": "vsi-zone-1"}, store.Options{Parent: "management"})

	ev := NewStarlarkEvaluator(time.Second)
	sctx := &store.Context{View: s.View(), Type: "vpcs", Original: store.Entity{"name": "management"}}

	predicates := []struct {
		expr      string
		candidate store.Entity
		want      bool
	}{
		{`not valid_name(entity.get("name", ""))`, store.Entity{"name": "Bad_Name"}, true},
		{`not valid_name(entity.get("name", ""))`, store.Entity{"name": "good-name"}, false},
		{`not valid_name(entity.get("name"))`, store.Entity{}, true},
		{`entity["name"] != original["name"] and has("vpcs", entity["name"])`, store.Entity{"name": "management"}, false},
		{`has_in("vpcs.subnets", "management", "vsi-zone-1")`, store.Entity{}, true},
		{`has_in("vpcs.subnets", "other", "vsi-zone-1")`, store.Entity{}, false},
		{`find("vpcs", "", "management")["name"] == "management"`, store.Entity{}, true},
		{`find("vpcs", "", "missing") == None`, store.Entity{}, true},
		{`type == "vpcs" and parent == ""`, store.Entity{}, true},
	}
	for _, tt := range predicates {
		t.Run(tt.expr, func(t *testing.T) {
			pred, err := ev.Predicate(tt.expr, true)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if got := pred(tt.candidate, sctx); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("groups", func(t *testing.T) {
		groups, err := ev.Groups(`keys("vpcs") + keys_in("vpcs.subnets", "management")`)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		got := groups(store.Entity{}, sctx)
		if len(got) != 2 || got[0] != "management" || got[1] != "vsi-zone-1" {
			t.Errorf("unexpected groups: %v", got)
		}
	})

	t.Run("text", func(t *testing.T) {
		text, err := ev.Text(`"Name " + entity["name"] + " already in use"`)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if got := text(store.Entity{"name": "x"}, sctx); got != "Name x already in use" {
			t.Errorf("unexpected text %q", got)
		}
	})

	t.Run("runtime failure uses fallback", func(t *testing.T) {
		invalid, err := ev.Predicate(`entity["missing"] == 1`, true)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if !invalid(store.Entity{}, sctx) {
			t.Error("expected failing invalid predicate to report invalid")
		}
		hidden, err := ev.Predicate(`entity["missing"]`, false)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if hidden(store.Entity{}, sctx) {
			t.Error("expected failing hide predicate to report visible")
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		if _, err := ev.Predicate(`entity[`, true); err == nil {
			t.Error("expected parse error")
		}
		if err := CheckExpr(`x = 1`); err == nil {
			t.Error("expected statement to be rejected")
		}
	})
}
