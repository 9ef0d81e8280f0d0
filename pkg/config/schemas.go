package config

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// DocumentSchema is the name the rendered entity-type schema is registered
// under.
const DocumentSchema = "document"

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	_ = sr.RegisterSchema("app_config", builtinAppConfigSchema)

	return sr
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// RegisterEntityTypes renders descriptions to CUE and registers the result
// as the document schema. It returns the rendered source.
func (sr *SchemaRegistry) RegisterEntityTypes(descs []store.TypeDescription) (string, error) {
	src := RenderSchema(descs)
	if err := sr.RegisterSchema(DocumentSchema, src); err != nil {
		return src, err
	}
	return src, nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema. When
// definition is non-empty the data is unified with that definition
// (e.g. "#Document") instead of the schema root.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName, definition string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}
	if definition != "" {
		schema = schema.LookupPath(cue.ParsePath(definition))
		if !schema.Exists() {
			return fmt.Errorf("definition %s not found in schema %s", definition, schemaName)
		}
	}

	sr.mu.Lock()
	dataVal := sr.ctx.Encode(data)
	sr.mu.Unlock()
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ValidateDocument checks the shape of a document against the registered
// entity types and returns one ValidationError per CUE error.
func (sr *SchemaRegistry) ValidateDocument(ctx context.Context, doc store.Document) ([]ValidationError, error) {
	err := sr.ValidateAgainstSchema(ctx, DocumentSchema, "#Document", map[string]any(doc))
	if err == nil {
		return nil, nil
	}
	if _, ok := sr.GetSchema(DocumentSchema); !ok {
		return nil, err
	}

	var out []ValidationError
	for _, e := range errors.Errors(err) {
		path := strings.Join(e.Path(), ".")
		format, args := e.Msg()
		out = append(out, ValidationError{
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		})
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error(), Severity: "error"})
	}
	return out, nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderSchema renders entity type descriptions as CUE definitions: one
// #<type> per type (sub types as #<parent>_<sub>) and a #Document tying
// each collection to its document property. Definitions are left open
// because entities may carry properties the schema does not declare.
func RenderSchema(descs []store.TypeDescription) string {
	var b strings.Builder
	b.WriteString("// Code generated from registered entity types. DO NOT EDIT.\n\n")

	b.WriteString("#Document: {\n")
	for _, d := range descs {
		fmt.Fprintf(&b, "\t%s?: %s\n", strconv.Quote(d.Name), collectionType(d, defName(d.Name)))
	}
	b.WriteString("\t...\n}\n")

	for _, d := range descs {
		renderType(&b, d, defName(d.Name))
	}
	return b.String()
}

// RenderType renders a single description and its sub types.
func RenderType(desc store.TypeDescription) string {
	var b strings.Builder
	renderType(&b, desc, defName(desc.Name))
	return b.String()
}

func renderType(b *strings.Builder, d store.TypeDescription, name string) {
	fmt.Fprintf(b, "\n%s: {\n", name)
	for _, f := range d.Fields {
		label := strconv.Quote(f.Name)
		if f.Name == d.KeyField && d.Kind == store.KindCollection {
			fmt.Fprintf(b, "\t%s: string\n", label)
			continue
		}
		fmt.Fprintf(b, "\t%s?: %s\n", label, fieldType(f))
	}
	if d.ParentField != "" && !declares(d, d.ParentField) {
		fmt.Fprintf(b, "\t%s?: string | null\n", strconv.Quote(d.ParentField))
	}
	for _, sub := range d.Subs {
		fmt.Fprintf(b, "\t%s?: %s\n", strconv.Quote(subName(sub.Name)), collectionType(sub, subDefName(name, sub.Name)))
	}
	b.WriteString("\t...\n}\n")

	for _, sub := range d.Subs {
		renderType(b, sub, subDefName(name, sub.Name))
	}
}

func collectionType(d store.TypeDescription, def string) string {
	if d.Kind == store.KindObject {
		return def
	}
	return "[..." + def + "]"
}

func fieldType(f store.FieldDescription) string {
	if f.Many || f.Type == store.FieldMultiSelect {
		return "[...string] | null"
	}
	switch f.Type {
	case store.FieldNumber:
		return "number | string | null"
	case store.FieldToggle:
		return "bool | null"
	case store.FieldTextArea:
		return "_"
	case store.FieldSelect:
		if len(f.Values) > 0 && !f.Dynamic && f.Reference == "" {
			alts := make([]string, 0, len(f.Values)+1)
			for _, v := range f.Values {
				alts = append(alts, strconv.Quote(v))
			}
			alts = append(alts, "null")
			return strings.Join(alts, " | ")
		}
		return "string | number | null"
	default:
		return "string | null"
	}
}

func declares(d store.TypeDescription, field string) bool {
	for _, f := range d.Fields {
		if f.Name == field {
			return true
		}
	}
	return false
}

// subName strips the parent qualifier from "parent.sub".
func subName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

func subDefName(parentDef, qualified string) string {
	return parentDef + "_" + identifier(subName(qualified))
}

func defName(typeName string) string {
	return "#" + identifier(typeName)
}

// identifier maps a type name to a valid CUE identifier.
func identifier(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

const builtinAppConfigSchema = `
// Configuration file of the craig command line tool
#AppConfig: {
	document:          string & != ""
	prefix?:           string & =~"^[a-z][a-z0-9-]*$"
	catalogs?:         [...string]
	policy_paths?:     [...string]
	max_passes?:       int & >=1 & <=32
	log_level?:        "trace" | "debug" | "info" | "warn" | "error"
	output?:           "text" | "json" | "yaml" | "cue"
	starlark_timeout?: string
	telemetry?: {
		tracing?:         "none" | "stdout" | "otlp"
		otlp_endpoint?:   string
		metrics_address?: string
	}
	history?: {
		enabled?: bool
		path?:    string
		keep?:    int & >=0
		events?:  bool
	}
}
`
