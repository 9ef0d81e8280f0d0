package store

// CollectionKind distinguishes the two shapes a registered type may take in
// the document.
type CollectionKind string

const (
	// KindCollection is an array of keyed entities.
	KindCollection CollectionKind = "collection"

	// KindObject is a singleton object entity (e.g. account-wide options).
	KindObject CollectionKind = "object"
)

// FieldType describes how a property is edited and what shape it holds.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextArea    FieldType = "textarea"
	FieldNumber      FieldType = "number"
	FieldToggle      FieldType = "toggle"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldPublicKey   FieldType = "public-key"
)

// MissingPolicy decides what happens to a reference whose target is gone.
type MissingPolicy string

const (
	// MissingNull sets a single-valued reference to nil.
	MissingNull MissingPolicy = "null"

	// MissingRemove drops the missing key from a multi-valued reference.
	MissingRemove MissingPolicy = "remove"

	// MissingPrune deletes the referencing entity. Used for owner-like
	// references where the entity has no meaning without its target.
	MissingPrune MissingPolicy = "prune"
)

// Predicate is a pure check over an edit-buffer candidate and ambient context.
type Predicate func(candidate Entity, ctx *Context) bool

// TextFunc renders a message for a candidate.
type TextFunc func(candidate Entity, ctx *Context) string

// GroupsFunc returns the selectable values for a field.
type GroupsFunc func(candidate Entity, ctx *Context) []string

// ValueFunc computes a value for a field (input normalization, render text).
type ValueFunc func(candidate Entity, ctx *Context) any

// StateChangeFunc mutates the edit buffer in response to a field change.
type StateChangeFunc func(candidate Entity, ctx *Context)

// ReconcileFunc is a repair hook. It receives the whole store and restores
// the invariants of its own collection.
type ReconcileFunc func(s *Store)

// InitFunc initializes a type's collection when it is registered.
type InitFunc func(s *Store)

// CreateFunc, SaveFunc and DeleteFunc override the generic CRUD behavior of a
// type. They run inside the façade call, before reconciliation.
type (
	CreateFunc func(s *Store, data Entity, opts Options)
	SaveFunc   func(s *Store, data Entity, opts Options)
	DeleteFunc func(s *Store, opts Options)
)

// FieldSpec is the schema of one property of an entity type. Every function
// field is optional.
type FieldSpec struct {
	// Name is the property name on the entity.
	Name string

	// Type is the edit type of the property.
	Type FieldType

	// Default is the value a fresh edit buffer starts with.
	Default any

	// Optional marks properties that may be left empty.
	Optional bool

	// Values is the statically known set of allowed values, if any.
	Values []string

	Invalid       Predicate
	InvalidText   TextFunc
	HideWhen      Predicate
	Groups        GroupsFunc
	OnInputChange ValueFunc
	OnRender      ValueFunc
	OnStateChange StateChangeFunc
}

// Reference declares a property holding the key of an entity in another
// collection.
type Reference struct {
	// Field is the referencing property.
	Field string `json:"field" yaml:"field"`

	// Target is the referenced type. Sub types are written "parent.sub".
	Target string `json:"target" yaml:"target"`

	// Many marks a list of keys rather than a single key.
	Many bool `json:"many,omitempty" yaml:"many,omitempty"`

	// Scope names the property holding the parent key of a sub-type target.
	// When empty the key may live under any parent.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`

	// OnMissing overrides the default policy (null for single, remove for
	// many).
	OnMissing MissingPolicy `json:"on_missing,omitempty" yaml:"on_missing,omitempty"`
}

func (r Reference) policy() MissingPolicy {
	if r.OnMissing != "" {
		return r.OnMissing
	}
	if r.Many {
		return MissingRemove
	}
	return MissingNull
}

// Mirror declares a denormalized copy of a property of a referenced entity.
type Mirror struct {
	// Field is the property that holds the copy.
	Field string `json:"field" yaml:"field"`

	// From is the reference property used to find the source entity.
	From string `json:"from" yaml:"from"`

	// Source is the property copied from the source entity.
	Source string `json:"source" yaml:"source"`
}

// FieldDefinition describes an entity type to the registry.
type FieldDefinition struct {
	// Name is the type name and the document property it lives under. For a
	// sub type it is the nested collection's property on the parent.
	Name string

	// KeyField identifies entities in the collection. Defaults to "name".
	KeyField string

	// Kind is the document shape. Defaults to KindCollection.
	Kind CollectionKind

	// Default returns the declared default value of the collection or object.
	// Collections default to an empty list, objects to an empty entity.
	Default func() any

	// Fields is the ordered property schema.
	Fields []*FieldSpec

	// Required lists the fields whose Invalid predicates gate persistence.
	Required []string

	// References and Mirrors drive the standard repair pass and the rename
	// cascade.
	References []Reference
	Mirrors    []Mirror

	// ParentField names the property on a sub-entity mirroring its parent key.
	ParentField string

	Init              InitFunc
	OnStoreUpdate     ReconcileFunc
	Create            CreateFunc
	Save              SaveFunc
	Delete            DeleteFunc
	ShouldDisableSave Predicate

	// SubComponents are entity types stored inside each entity of this type.
	SubComponents []*FieldDefinition
}

func (d *FieldDefinition) keyField() string {
	if d.KeyField != "" {
		return d.KeyField
	}
	return "name"
}

func (d *FieldDefinition) kind() CollectionKind {
	if d.Kind == "" {
		return KindCollection
	}
	return d.Kind
}

func (d *FieldDefinition) defaultValue() any {
	if d.Default != nil {
		return d.Default()
	}
	if d.kind() == KindObject {
		return Entity{}
	}
	return []Entity{}
}

func (d *FieldDefinition) field(name string) *FieldSpec {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (d *FieldDefinition) sub(name string) *FieldDefinition {
	for _, s := range d.SubComponents {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Options carry the addressing arguments of a façade call.
type Options struct {
	// Key is the current key value of the entity to save or delete.
	Key string

	// Parent is the key of the parent entity for sub-entity operations.
	Parent string
}

// Context is the ambient state predicates evaluate against.
type Context struct {
	// View is a read-only window onto the live document.
	View View

	// Type is the qualified type name of the candidate.
	Type string

	// Parent is the parent key when the candidate is a sub-entity.
	Parent string

	// Original is the persisted entity being edited, nil on create.
	Original Entity

	// Extra carries caller-specific values (e.g. UI modal state).
	Extra map[string]any
}

// OriginalKey returns the key of the entity being edited, or "".
func (c *Context) OriginalKey(field string) string {
	if c == nil {
		return ""
	}
	return c.Original.Str(field)
}
