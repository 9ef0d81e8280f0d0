package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// CatalogFile is a declarative set of entity types read from YAML. Field
// behavior is written as Starlark expressions (see EvalExpr):
//
//	types:
//	  - name: dns_zones
//	    required: [name]
//	    fields:
//	      - name: name
//	        invalid: "not valid_name(entity.get('name', ''))"
//	        invalid_text: "'Invalid name ' + entity.get('name', '')"
//	      - name: vpc
//	        type: select
//	        groups: "keys('vpcs')"
//	        on_state_change: |
//	          updates = {"subnets": []}
//	    references:
//	      - {field: vpc, target: vpcs}
type CatalogFile struct {
	Types []CatalogType `yaml:"types" validate:"required,min=1,dive"`
}

// CatalogType declares one entity type.
type CatalogType struct {
	Name        string               `yaml:"name" validate:"required"`
	KeyField    string               `yaml:"key_field,omitempty"`
	Kind        store.CollectionKind `yaml:"kind,omitempty" validate:"omitempty,oneof=collection object"`
	Default     any                  `yaml:"default,omitempty"`
	ParentField string               `yaml:"parent_field,omitempty"`
	Required    []string             `yaml:"required,omitempty"`
	Fields      []CatalogField       `yaml:"fields" validate:"dive"`
	References  []store.Reference    `yaml:"references,omitempty" validate:"dive"`
	Mirrors     []store.Mirror       `yaml:"mirrors,omitempty"`

	// DisableSave overrides the required-field rule.
	DisableSave string `yaml:"disable_save,omitempty"`

	SubTypes []CatalogType `yaml:"sub_types,omitempty" validate:"dive"`
}

// CatalogField declares one property.
type CatalogField struct {
	Name     string          `yaml:"name" validate:"required"`
	Type     store.FieldType `yaml:"type,omitempty" validate:"omitempty,oneof=text textarea number toggle select multiselect public-key"`
	Default  any             `yaml:"default,omitempty"`
	Optional bool            `yaml:"optional,omitempty"`
	Values   []string        `yaml:"values,omitempty"`

	// Expressions.
	Invalid     string `yaml:"invalid,omitempty"`
	InvalidText string `yaml:"invalid_text,omitempty"`
	HideWhen    string `yaml:"hide_when,omitempty"`
	Groups      string `yaml:"groups,omitempty"`

	// OnStateChange is a script run when the field changes in an edit
	// buffer (see StarlarkEvaluator.StateChange).
	OnStateChange string `yaml:"on_state_change,omitempty"`
}

var catalogValidator = validator.New()

// LoadCatalogFile reads and validates a declarative catalog.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	cf, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cf, nil
}

// ParseCatalog decodes and validates a declarative catalog.
func ParseCatalog(data []byte) (*CatalogFile, error) {
	var cf CatalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := catalogValidator.Struct(&cf); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &cf, nil
}

// Register compiles every type's expressions with ev and registers the types
// with s in file order. Compilation errors abort before anything is
// registered.
func (cf *CatalogFile) Register(s *store.Store, ev *StarlarkEvaluator) error {
	defs := make([]store.FieldDefinition, 0, len(cf.Types))
	for i := range cf.Types {
		def, err := cf.Types[i].definition(ev)
		if err != nil {
			return err
		}
		defs = append(defs, *def)
	}
	for i, def := range defs {
		if err := s.Register(cf.Types[i].Name, def); err != nil {
			return fmt.Errorf("failed to register %s: %w", cf.Types[i].Name, err)
		}
	}
	return nil
}

func (ct *CatalogType) definition(ev *StarlarkEvaluator) (*store.FieldDefinition, error) {
	def := &store.FieldDefinition{
		Name:        ct.Name,
		KeyField:    ct.KeyField,
		Kind:        ct.Kind,
		ParentField: ct.ParentField,
		Required:    ct.Required,
		References:  ct.References,
		Mirrors:     ct.Mirrors,
	}
	if ct.Default != nil {
		def.Default = declaredDefault(ct.Default)
	}

	if ct.DisableSave != "" {
		pred, err := ev.Predicate(ct.DisableSave, true)
		if err != nil {
			return nil, fmt.Errorf("%s.disable_save: %w", ct.Name, err)
		}
		def.ShouldDisableSave = pred
	}

	for _, cfield := range ct.Fields {
		spec, err := cfield.spec(ev)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", ct.Name, cfield.Name, err)
		}
		def.Fields = append(def.Fields, spec)
	}

	for i := range ct.SubTypes {
		sub, err := ct.SubTypes[i].definition(ev)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ct.Name, err)
		}
		def.SubComponents = append(def.SubComponents, sub)
	}
	return def, nil
}

func (cf *CatalogField) spec(ev *StarlarkEvaluator) (*store.FieldSpec, error) {
	spec := &store.FieldSpec{
		Name:     cf.Name,
		Type:     cf.Type,
		Default:  normalizeYAML(cf.Default),
		Optional: cf.Optional,
		Values:   cf.Values,
	}

	var err error
	if cf.Invalid != "" {
		if spec.Invalid, err = ev.Predicate(cf.Invalid, true); err != nil {
			return nil, fmt.Errorf("invalid: %w", err)
		}
	}
	if cf.InvalidText != "" {
		if spec.InvalidText, err = ev.Text(cf.InvalidText); err != nil {
			return nil, fmt.Errorf("invalid_text: %w", err)
		}
	}
	if cf.HideWhen != "" {
		if spec.HideWhen, err = ev.Predicate(cf.HideWhen, false); err != nil {
			return nil, fmt.Errorf("hide_when: %w", err)
		}
	}
	if cf.Groups != "" {
		if spec.Groups, err = ev.Groups(cf.Groups); err != nil {
			return nil, fmt.Errorf("groups: %w", err)
		}
	}
	if cf.OnStateChange != "" {
		if spec.OnStateChange, err = ev.StateChange(cf.OnStateChange); err != nil {
			return nil, fmt.Errorf("on_state_change: %w", err)
		}
	}
	return spec, nil
}

// declaredDefault returns a Default func handing out fresh copies of v.
func declaredDefault(v any) func() any {
	return func() any {
		return normalizeYAML(v)
	}
}
