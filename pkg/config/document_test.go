package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

func TestFormatOf(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"craig.json", FormatJSON, false},
		{"craig.YAML", FormatYAML, false},
		{"craig.yml", FormatYAML, false},
		{"craig.cue", FormatCUE, false},
		{dir, FormatCUE, false},
		{"craig.toml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FormatOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSaveAndLoadDocument(t *testing.T) {
	doc := store.Document{
		"options": store.Entity{"prefix": "slz", "zones": 3, "tags": []string{"a"}},
		"vpcs": []store.Entity{{
			"name":    "management",
			"subnets": []store.Entity{{"name": "vsi-zone-1", "zone": "1"}},
		}},
	}

	for _, ext := range []string{".json", ".yaml", ".cue"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "craig"+ext)
			if err := SaveDocument(path, doc); err != nil {
				t.Fatalf("save: %v", err)
			}

			loaded, err := LoadDocument(context.Background(), path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}

			// Loading through a store gives every format the same canonical shape.
			s := store.New()
			s.Load(loaded)
			want := store.New()
			want.Load(doc)
			got, _ := s.JSON()
			exp, _ := want.JSON()
			if string(got) != string(exp) {
				t.Errorf("round trip mismatch:\n got %s\nwant %s", got, exp)
			}
		})
	}
}

func TestDecodeDocumentYAML(t *testing.T) {
	doc, err := DecodeDocument([]byte(`
options:
  prefix: slz
  zones: 3
vpcs:
  - name: management
    subnets:
      - name: vsi-zone-1
        zone: "1"
`), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	opts, ok := doc["options"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected options object, got %T", doc["options"])
	}
	if opts["zones"] != 3 {
		t.Errorf("expected zones int 3, got %#v", opts["zones"])
	}
	vpcs, ok := doc["vpcs"].([]interface{})
	if !ok || len(vpcs) != 1 {
		t.Fatalf("expected one vpc, got %#v", doc["vpcs"])
	}
}

func TestLoadDocumentErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("unsupported", func(t *testing.T) {
		if _, err := LoadDocument(context.Background(), filepath.Join(dir, "doc.txt")); err == nil {
			t.Error("expected error for unsupported extension")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadDocument(context.Background(), path)
		if err == nil {
			t.Fatal("expected decode error")
		}
		var serr *store.Error
		if !errors.As(err, &serr) || serr.Code != store.ErrCodeDecode {
			t.Errorf("expected a store decode error, got %v", err)
		}
	})

	t.Run("malformed cue", func(t *testing.T) {
		path := filepath.Join(dir, "bad.cue")
		if err := os.WriteFile(path, []byte("vpcs: [\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadDocument(context.Background(), path)
		var derr *DocumentError
		if !errors.As(err, &derr) {
			t.Fatalf("expected DocumentError, got %v", err)
		}
		if len(derr.Errors) == 0 || derr.Errors[0].File == "" {
			t.Errorf("expected located errors, got %+v", derr.Errors)
		}
	})
}

func TestNormalizeYAML(t *testing.T) {
	in := map[interface{}]interface{}{
		"count": int64(2),
		1:       []interface{}{map[interface{}]interface{}{"ratio": float32(0.5)}},
	}

	out, ok := normalizeYAML(in).(map[string]interface{})
	if !ok {
		t.Fatalf("expected string-keyed map, got %T", normalizeYAML(in))
	}
	if out["count"] != 2 {
		t.Errorf("expected int count, got %#v", out["count"])
	}
	list := out["1"].([]interface{})
	if list[0].(map[string]interface{})["ratio"] != float64(float32(0.5)) {
		t.Errorf("unexpected nested value %#v", list[0])
	}
}
