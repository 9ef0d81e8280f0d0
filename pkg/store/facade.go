package store

import (
	"fmt"
)

// EntityType is the per-type façade of a registered entity type:
// create/save/delete plus field accessors, and the same shape one level down
// for sub types.
type EntityType struct {
	store *Store
	entry *registered
}

// Name returns the qualified type name ("vpcs", "vpcs.subnets").
func (t *EntityType) Name() string {
	return t.entry.name
}

// Definition returns the registered definition.
func (t *EntityType) Definition() *FieldDefinition {
	return t.entry.def
}

// KeyField returns the property identifying entities of this type.
func (t *EntityType) KeyField() string {
	return t.entry.keyField()
}

// IsSub reports whether the type is a sub type.
func (t *EntityType) IsSub() bool {
	return t.entry.parent != nil
}

// Sub returns the façade of a declared sub type.
func (t *EntityType) Sub(name string) (*EntityType, error) {
	for _, sub := range t.entry.subs {
		if sub.def.Name == name {
			return &EntityType{store: t.store, entry: sub}, nil
		}
	}
	return nil, newError(ErrorClassLookup, ErrCodeSubUnknown,
		fmt.Sprintf("sub type %q is not declared", name), nil).WithType(t.entry.name).WithField(name)
}

// MustSub is like Sub but panics on an undeclared name.
func (t *EntityType) MustSub(name string) *EntityType {
	sub, err := t.Sub(name)
	if err != nil {
		panic(err)
	}
	return sub
}

// Field returns the accessor of a declared schema property.
func (t *EntityType) Field(name string) (*Field, error) {
	spec := t.entry.def.field(name)
	if spec == nil {
		return nil, newError(ErrorClassLookup, ErrCodeFieldUnknown,
			fmt.Sprintf("field %q is not declared", name), nil).WithType(t.entry.name).WithField(name)
	}
	return &Field{typ: t, spec: spec}, nil
}

// MustField is like Field but panics on an undeclared name.
func (t *EntityType) MustField(name string) *Field {
	f, err := t.Field(name)
	if err != nil {
		panic(err)
	}
	return f
}

// Fields returns accessors for every declared property in schema order.
func (t *EntityType) Fields() []*Field {
	out := make([]*Field, 0, len(t.entry.def.Fields))
	for _, spec := range t.entry.def.Fields {
		out = append(out, &Field{typ: t, spec: spec})
	}
	return out
}

// Create appends data to the type's collection (or the parent's nested
// collection for sub types) and reconciles. Key uniqueness is not checked.
func (t *EntityType) Create(data Entity, opts Options) {
	t.store.mutate(t.entry.name, "create", func() {
		if t.entry.def.Create != nil {
			t.entry.def.Create(t.store, data.Clone(), opts)
			return
		}
		if t.entry.def.kind() == KindObject {
			t.store.EnsureObject(t.entry.name).Update(data)
			return
		}
		t.store.pathFor(t.entry, opts.Parent).Push(data)
	})
}

// Save merges data onto the entity whose key is opts.Key (or data's own key
// when opts.Key is empty) and reconciles. When the key itself changes, every
// declared reference to the old key is rewritten to the new one.
func (t *EntityType) Save(data Entity, opts Options) {
	t.store.mutate(t.entry.name, "save", func() {
		if t.entry.def.Save != nil {
			t.entry.def.Save(t.store, data.Clone(), opts)
			return
		}
		if t.entry.def.kind() == KindObject {
			t.store.EnsureObject(t.entry.name).Update(data)
			return
		}

		keyField := t.entry.keyField()
		oldKey := opts.Key
		if oldKey == "" {
			oldKey = data.Str(keyField)
		}
		rev := t.store.pathFor(t.entry, opts.Parent).Find(oldKey)
		if !rev.Found() {
			return
		}
		rev.Update(data)
		if newKey, ok := keyString(data[keyField]); ok && newKey != oldKey {
			t.store.CascadeRename(t.entry.name, opts.Parent, oldKey, newKey)
		}
	})
}

// Delete removes the entity whose key is opts.Key and reconciles.
func (t *EntityType) Delete(opts Options) {
	t.store.mutate(t.entry.name, "delete", func() {
		if t.entry.def.Delete != nil {
			t.entry.def.Delete(t.store, opts)
			return
		}
		if t.entry.def.kind() == KindObject {
			return
		}
		t.store.pathFor(t.entry, opts.Parent).Carve(opts.Key)
	})
}

// Context builds a predicate context for this type against the live
// document.
func (t *EntityType) Context(parent string, original Entity) *Context {
	return &Context{
		View:     t.store.View(),
		Type:     t.entry.name,
		Parent:   parent,
		Original: original,
	}
}

func (t *EntityType) context(ctx *Context) *Context {
	if ctx != nil {
		return ctx
	}
	return t.Context("", nil)
}

// pathFor resolves the collection of a type. For sub types the parent entity
// is found by parentKey; an unknown parent yields an inert path.
func (s *Store) pathFor(t *registered, parentKey string) *Path {
	if t.parent == nil {
		return s.Collection(t.name).KeyedBy(t.keyField())
	}
	return s.Collection(t.parent.name).
		KeyedBy(t.parent.keyField()).
		Find(parentKey).
		Child(t.def.Name).
		KeyedBy(t.keyField())
}

// CascadeRename rewrites every declared reference to oldKey of the qualified
// type so it points at newKey. For sub-type targets a scoped reference is
// rewritten only when its scope equals parentKey, and a sibling sub entity
// only under parentKey. An unscoped reference from elsewhere is left alone
// while another parent still holds a sub entity keyed oldKey, since it may
// point at that one.
func (s *Store) CascadeRename(typeName, parentKey, oldKey, newKey string) {
	target, ok := s.byName[typeName]
	if !ok {
		return
	}
	sub := target.parent != nil
	shared := false
	if sub {
		s.eachEntity(target, func(e Entity, pk string) {
			if k, ok := keyString(e[target.keyField()]); ok && k == oldKey && pk != parentKey {
				shared = true
			}
		})
	}

	renamed := 0
	for _, top := range s.types {
		entries := append([]*registered{top}, top.subs...)
		for _, t := range entries {
			for _, ref := range t.def.References {
				if ref.Target != typeName {
					continue
				}
				s.eachEntity(t, func(e Entity, owner string) {
					switch {
					case !sub:
					case ref.Scope != "":
						if e.Str(ref.Scope) != parentKey {
							return
						}
					case t.parent == target.parent:
						if owner != parentKey {
							return
						}
					case shared:
						return
					}
					if renameIn(e, ref, oldKey, newKey) {
						renamed++
					}
				})
			}
		}
	}
	if renamed > 0 {
		s.touch()
		s.logger.Debug().
			Str("type", typeName).
			Str("old", oldKey).
			Str("new", newKey).
			Int("references", renamed).
			Msg("Rename cascaded to references")
	}
}

func renameIn(e Entity, ref Reference, oldKey, newKey string) bool {
	if ref.Many {
		list, ok := asStrings(e[ref.Field])
		if !ok {
			return false
		}
		changed := false
		next := make([]string, len(list))
		for i, key := range list {
			if key == oldKey {
				key = newKey
				changed = true
			}
			next[i] = key
		}
		if changed {
			e[ref.Field] = next
		}
		return changed
	}
	if key, ok := keyString(e[ref.Field]); ok && key == oldKey {
		e[ref.Field] = newKey
		return true
	}
	return false
}

// Field is the accessor of one schema property. Every method tolerates an
// absent function by returning the neutral value.
type Field struct {
	typ  *EntityType
	spec *FieldSpec
}

// Name returns the property name.
func (f *Field) Name() string {
	return f.spec.Name
}

// Spec returns the property schema.
func (f *Field) Spec() *FieldSpec {
	return f.spec
}

// Default returns a copy of the declared default value.
func (f *Field) Default() any {
	return cloneValue(f.spec.Default)
}

// Invalid evaluates the property's validity predicate.
func (f *Field) Invalid(candidate Entity, ctx *Context) bool {
	if f.spec.Invalid == nil {
		return false
	}
	return f.spec.Invalid(candidate, f.typ.context(ctx))
}

// InvalidText renders the message shown when the property is invalid.
func (f *Field) InvalidText(candidate Entity, ctx *Context) string {
	if f.spec.InvalidText == nil {
		return fmt.Sprintf("Invalid %s", f.spec.Name)
	}
	return f.spec.InvalidText(candidate, f.typ.context(ctx))
}

// Hidden evaluates the property's visibility predicate.
func (f *Field) Hidden(candidate Entity, ctx *Context) bool {
	if f.spec.HideWhen == nil {
		return false
	}
	return f.spec.HideWhen(candidate, f.typ.context(ctx))
}

// Groups returns the selectable values of the property. Static Values are
// used when no function is declared.
func (f *Field) Groups(candidate Entity, ctx *Context) []string {
	if f.spec.Groups == nil {
		out := make([]string, len(f.spec.Values))
		copy(out, f.spec.Values)
		return out
	}
	return f.spec.Groups(candidate, f.typ.context(ctx))
}

// OnInputChange returns the normalized value of the property after an edit.
func (f *Field) OnInputChange(candidate Entity, ctx *Context) any {
	if f.spec.OnInputChange == nil {
		return candidate[f.spec.Name]
	}
	return f.spec.OnInputChange(candidate, f.typ.context(ctx))
}

// OnRender returns the display value of the property.
func (f *Field) OnRender(candidate Entity, ctx *Context) any {
	if f.spec.OnRender == nil {
		return candidate[f.spec.Name]
	}
	return f.spec.OnRender(candidate, f.typ.context(ctx))
}

// OnStateChange lets the property rewrite the edit buffer.
func (f *Field) OnStateChange(candidate Entity, ctx *Context) {
	if f.spec.OnStateChange == nil {
		return
	}
	f.spec.OnStateChange(candidate, f.typ.context(ctx))
}
