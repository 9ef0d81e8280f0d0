package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// Format is a document serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatOf picks the format from a file extension. Directories are read as
// CUE packages.
func FormatOf(path string) (Format, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return FormatCUE, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported document format: %s", path)
	}
}

// LoadDocument reads a document file. CUE parse errors are returned as a
// *DocumentError carrying their locations.
func LoadDocument(ctx context.Context, path string) (store.Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	if format == FormatCUE {
		parsed, err := NewCUEParser().Parse(ctx, []string{path})
		if err != nil {
			return nil, err
		}
		if parsed.HasErrors() {
			return nil, &DocumentError{Path: path, Errors: parsed.Errors}
		}
		return parsed.Document, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return DecodeDocument(data, format)
}

// DecodeDocument parses JSON or YAML document bytes.
func DecodeDocument(data []byte, format Format) (store.Document, error) {
	switch format {
	case FormatJSON:
		return store.DecodeDocument(data)
	case FormatYAML:
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode YAML document: %w", err)
		}
		return normalizeDocument(raw), nil
	case FormatCUE:
		parsed, err := NewCUEParser().ParseInline(context.Background(), string(data))
		if err != nil {
			return nil, err
		}
		if parsed.HasErrors() {
			return nil, &DocumentError{Path: "inline", Errors: parsed.Errors}
		}
		return parsed.Document, nil
	default:
		return nil, fmt.Errorf("unsupported document format: %s", format)
	}
}

// EncodeDocument serializes a document. JSON is indented.
func EncodeDocument(doc store.Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(map[string]interface{}(doc))
	case FormatCUE:
		return NewCUEParser().ExportCUE(doc)
	default:
		return nil, fmt.Errorf("unsupported document format: %s", format)
	}
}

// SaveDocument writes a document in the format its extension names. The
// file is replaced through a temporary file in the same directory.
func SaveDocument(path string, doc store.Document) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := EncodeDocument(doc, format)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".craig-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace document %s: %w", path, err)
	}
	return nil
}

// DocumentError lists the located parse errors of a document.
type DocumentError struct {
	Path   string
	Errors []ValidationError
}

func (e *DocumentError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.String())
	}
	return fmt.Sprintf("failed to parse document %s: %s", e.Path, strings.Join(msgs, "; "))
}

// normalizeDocument maps decoded YAML or CUE values onto the JSON shapes the
// store works with.
func normalizeDocument(raw map[string]interface{}) store.Document {
	if raw == nil {
		return store.Document{}
	}
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		doc[k] = normalizeYAML(v)
	}
	return doc
}

// normalizeYAML deep-copies v, turning map[interface{}]interface{} into
// map[string]interface{} and sized integers into int.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	case []string:
		return append([]string{}, val...)
	case int64:
		return int(val)
	case uint64:
		return int(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
