package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/load"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// CUEParser reads configuration documents written in CUE. Several files or
// package directories are unified into one document, so a landing zone can
// be split across files and constrained by the rendered entity schema.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	return &CUEParser{
		ctx:            cuecontext.New(),
		schemaRegistry: NewSchemaRegistry(),
	}
}

// NewCUEParserWithSchemas creates a parser sharing an existing registry.
func NewCUEParserWithSchemas(sr *SchemaRegistry) *CUEParser {
	cp := NewCUEParser()
	if sr != nil {
		cp.schemaRegistry = sr
	}
	return cp
}

// Parse parses CUE documents from the given files or directories.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedDocument, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var val cue.Value
		var errs []ValidationError
		if info.IsDir() {
			var files []string
			val, files, errs = cp.loadDirectory(source)
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs = cp.loadFile(source)
			sourceFiles = append(sourceFiles, source)
		}
		parseErrors = append(parseErrors, errs...)

		if val.Exists() {
			if cueValue.Exists() {
				cueValue = cueValue.Unify(val)
			} else {
				cueValue = val
			}
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedDocument{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	return cp.extractDocument(cueValue, sourceFiles), nil
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := cp.ctx.CompileBytes(content, cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}

	return val, nil
}

// extractDocument decodes a unified value into a document. Hidden fields and
// definitions are not part of the document.
func (cp *CUEParser) extractDocument(val cue.Value, sourceFiles []string) *ParsedDocument {
	parsed := &ParsedDocument{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	if err := val.Validate(cue.Concrete(true)); err != nil {
		parsed.Errors = cp.convertCUEErrors(err)
		return parsed
	}

	var raw map[string]interface{}
	if err := val.Decode(&raw); err != nil {
		parsed.Errors = append(parsed.Errors, ValidationError{
			Message:  fmt.Sprintf("failed to decode document: %v", err),
			Severity: "error",
		})
		return parsed
	}

	parsed.Document = normalizeDocument(raw)
	return parsed
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		var file string
		var line, column int
		if pos := errors.Positions(e); len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedDocument, error) {
	val := cp.ctx.CompileString(content, cue.Filename("inline"))
	if err := val.Err(); err != nil {
		return &ParsedDocument{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractDocument(val, []string{"inline"}), nil
}

// ValidateWithSchema checks the shape of doc against the entity types
// registered with the parser's schema registry.
func (cp *CUEParser) ValidateWithSchema(ctx context.Context, doc store.Document) ([]ValidationError, error) {
	return cp.schemaRegistry.ValidateDocument(ctx, doc)
}

// ValidateConstraints unifies doc with the CUE constraints read from the
// given files or package directories and returns one ValidationError per
// conflict. Constraints are plain CUE, e.g.
//
//	vpcs: [...{name: =~"^(management|workload)$"}]
//	options: zones: <=3
func (cp *CUEParser) ValidateConstraints(ctx context.Context, doc store.Document, sources []string) ([]ValidationError, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	constraints := cp.ctx.CompileString("{}")
	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat constraints %s: %w", source, err)
		}
		var val cue.Value
		var errs []ValidationError
		if info.IsDir() {
			val, _, errs = cp.loadDirectory(source)
		} else {
			val, errs = cp.loadFile(source)
		}
		if len(errs) > 0 {
			return errs, nil
		}
		merged, err := cp.MergeValues(constraints, val)
		if err != nil {
			return cp.convertCUEErrors(merged.Err()), nil
		}
		constraints = merged
	}

	docVal := cp.ctx.Encode(map[string]interface{}(doc))
	if err := docVal.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	unified, err := cp.MergeValues(constraints, docVal)
	if err != nil {
		return cp.convertCUEErrors(unified.Err()), nil
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cp.convertCUEErrors(err), nil
	}
	return nil, nil
}

// MergeValues unifies two CUE values. On conflict the unified value is
// returned alongside the error so callers can inspect every conflict.
func (cp *CUEParser) MergeValues(val1, val2 cue.Value) (cue.Value, error) {
	merged := val1.Unify(val2)
	if err := merged.Err(); err != nil {
		return merged, fmt.Errorf("failed to merge values: %w", err)
	}
	return merged, nil
}

// ExportCUE renders a document as formatted CUE source.
func (cp *CUEParser) ExportCUE(doc store.Document) ([]byte, error) {
	val := cp.ctx.Encode(map[string]interface{}(doc))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	node := val.Syntax(cue.Concrete(true))
	if st, ok := node.(*ast.StructLit); ok {
		node = &ast.File{Decls: st.Elts}
	}
	out, err := format.Node(node)
	if err != nil {
		return nil, fmt.Errorf("failed to format document: %w", err)
	}
	return out, nil
}

// FormatSource formats CUE source text.
func FormatSource(src []byte) ([]byte, error) {
	out, err := format.Source(src)
	if err != nil {
		return nil, fmt.Errorf("failed to format CUE source: %w", err)
	}
	return out, nil
}

// LoadFromDirectory lists all CUE files below a directory.
func (cp *CUEParser) LoadFromDirectory(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && strings.HasSuffix(path, ".cue") {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}
