package store

// EnsureCollection makes sure the top-level property name holds a list of
// entities. An absent or malformed value is replaced by the declared default;
// non-object members of a list are dropped. It returns the collection's path,
// keyed by the registered key field when name is registered.
func (s *Store) EnsureCollection(name string) *Path {
	p := s.Collection(name)
	var def *FieldDefinition
	if t, ok := s.byName[name]; ok {
		def = t.def
		p = p.KeyedBy(t.keyField())
	}
	ensureList(p, def)
	return p
}

// EnsureObject makes sure the top-level property name holds an object. An
// absent or malformed value is replaced by the declared default and missing
// default properties are filled in.
func (s *Store) EnsureObject(name string) *Revision {
	defaults := Entity{}
	if t, ok := s.byName[name]; ok {
		if d, ok := asEntity(t.def.defaultValue()); ok {
			defaults = d
		}
	}

	obj, ok := asEntity(s.doc[name])
	if !ok {
		s.doc[name] = defaults.Clone()
		s.touch()
		return s.Object(name)
	}
	if _, plain := s.doc[name].(Entity); !plain {
		s.doc[name] = obj
	}
	for k, v := range defaults {
		if _, present := obj[k]; !present {
			obj[k] = cloneValue(v)
		}
	}
	return s.Object(name)
}

func ensureList(p *Path, def *FieldDefinition) {
	if !p.Resolved() {
		return
	}
	v := p.owner[p.field]
	if isEntityList(v) {
		return
	}
	if list, ok := asEntities(v); ok {
		p.set(list)
		return
	}
	var fallback any = []Entity{}
	if def != nil {
		fallback = def.defaultValue()
	}
	if list, ok := asEntities(fallback); ok {
		p.set(cloneValue(list).([]Entity))
		return
	}
	p.set([]Entity{})
}

// ensureShape coerces a type's top-level property (and each parent's nested
// collections) toward the declared default shape.
func (s *Store) ensureShape(t *registered) {
	if t.parent != nil {
		t = t.parent
	}
	if t.def.kind() == KindObject {
		s.EnsureObject(t.name)
		return
	}
	p := s.EnsureCollection(t.name)
	for _, e := range p.Records() {
		for _, sub := range t.subs {
			ensureList(&Path{store: s, owner: e, field: sub.def.Name, keyField: sub.keyField()}, sub.def)
		}
	}
}

// StandardRepair restores the declared invariants of one registered type:
// the collection exists, malformed records are dropped, references to missing
// keys are nulled, removed or pruned per their policy, mirror fields and
// parent fields are re-copied from their sources, and sub types are repaired
// under every parent. Custom hooks call it before adding their own rules.
func (s *Store) StandardRepair(name string) {
	t, ok := s.byName[name]
	if !ok {
		s.logger.Warn().Str("type", name).Msg("Standard repair requested for unregistered type")
		return
	}

	if t.parent != nil {
		for _, parent := range s.EnsureCollection(t.parent.name).Records() {
			s.repairSubCollection(t, parent)
		}
		return
	}

	if t.def.kind() == KindObject {
		obj := s.EnsureObject(name).Data()
		s.repairEntity(t, obj, "")
		return
	}

	p := s.EnsureCollection(name)
	s.repairList(t, p, "")
	for _, parent := range p.Records() {
		for _, sub := range t.subs {
			s.repairSubCollection(sub, parent)
		}
	}
}

// SubPath returns the nested collection path of a sub type inside parent,
// keyed by the sub type's key field.
func (s *Store) SubPath(typeName string, parent Entity) *Path {
	t, ok := s.byName[typeName]
	if !ok || t.parent == nil {
		return &Path{store: s}
	}
	return &Path{store: s, owner: parent, field: t.def.Name, keyField: t.keyField()}
}

func (s *Store) repairSubCollection(t *registered, parent Entity) {
	pk, _ := keyString(parent[t.parent.keyField()])
	p := &Path{store: s, owner: parent, field: t.def.Name, keyField: t.keyField()}
	ensureList(p, t.def)
	s.repairList(t, p, pk)
}

func (s *Store) repairList(t *registered, p *Path, parentKey string) {
	records := p.Records()
	kept := make([]Entity, 0, len(records))
	for _, e := range records {
		if s.repairEntity(t, e, parentKey) {
			kept = append(kept, e)
		}
	}
	if len(kept) != len(records) {
		p.set(kept)
	}
}

// RepairEntity applies the standard rules of typeName to one entity and
// reports whether it should be kept. parentKey is the key of the owning
// parent for sub types.
func (s *Store) RepairEntity(typeName string, e Entity, parentKey string) bool {
	t, ok := s.byName[typeName]
	if !ok {
		return true
	}
	return s.repairEntity(t, e, parentKey)
}

func (s *Store) repairEntity(t *registered, e Entity, parentKey string) bool {
	if e == nil {
		return false
	}
	// A reference or mirror may be the key field itself, e.g. a tunnel keyed
	// by its gateway. The key index must see the new key before later types
	// resolve references against it.
	before, hadKey := keyString(e[t.keyField()])
	defer func() {
		after, hasKey := keyString(e[t.keyField()])
		if hadKey != hasKey || before != after {
			s.touch()
		}
	}()

	if t.def.ParentField != "" && t.parent != nil {
		e[t.def.ParentField] = parentKey
	}
	for _, ref := range t.def.References {
		if !s.repairReference(e, ref) {
			return false
		}
	}
	for _, m := range t.def.Mirrors {
		ref := t.def.referenceFor(m.From)
		key, ok := keyString(e[m.From])
		if !ok || ref == nil {
			e[m.Field] = nil
			continue
		}
		src := s.lookupRef(*ref, e, key)
		if src == nil {
			e[m.Field] = nil
			continue
		}
		e[m.Field] = cloneValue(src[m.Source])
	}
	return true
}

// repairReference enforces one reference on e. It returns false when e must
// be pruned.
func (s *Store) repairReference(e Entity, ref Reference) bool {
	if _, known := s.byName[ref.Target]; !known {
		return true
	}

	v, present := e[ref.Field]
	if ref.Many {
		list, ok := asStrings(v)
		if !ok {
			e[ref.Field] = []string{}
			return true
		}
		kept := make([]string, 0, len(list))
		for _, key := range list {
			if s.refExists(ref, e, key) {
				kept = append(kept, key)
			}
		}
		e[ref.Field] = kept
		return true
	}

	if !present || v == nil {
		return ref.policy() != MissingPrune
	}
	key, ok := keyString(v)
	if ok && s.refExists(ref, e, key) {
		return true
	}
	if ref.policy() == MissingPrune {
		return false
	}
	e[ref.Field] = nil
	return true
}

func (s *Store) refExists(ref Reference, e Entity, key string) bool {
	t := s.byName[ref.Target]
	if t.parent != nil && ref.Scope != "" {
		return s.HasIn(ref.Target, e.Str(ref.Scope), key)
	}
	return s.Has(ref.Target, key)
}

func (s *Store) lookupRef(ref Reference, e Entity, key string) Entity {
	scope := ""
	if ref.Scope != "" {
		scope = e.Str(ref.Scope)
	}
	return s.Lookup(ref.Target, scope, key)
}

// Lookup returns the live entity of a qualified type with key. For sub types
// parentKey narrows the search; when it is empty the first match under any
// parent is returned. Returns nil when absent.
func (s *Store) Lookup(typeName, parentKey, key string) Entity {
	t, ok := s.byName[typeName]
	if !ok {
		return nil
	}
	if t.parent == nil {
		if t.def.kind() == KindObject {
			return s.Object(typeName).Data()
		}
		return s.Collection(typeName).KeyedBy(t.keyField()).Find(key).Data()
	}

	parents := s.Collection(t.parent.name).KeyedBy(t.parent.keyField())
	if parentKey != "" {
		return parents.Find(parentKey).Child(t.def.Name).KeyedBy(t.keyField()).Find(key).Data()
	}
	for _, p := range parents.Records() {
		child := (&Path{store: s, owner: p, field: t.def.Name, keyField: t.keyField()}).Find(key).Data()
		if child != nil {
			return child
		}
	}
	return nil
}

// PruneWhere removes every entity of the path for which drop returns true.
func (p *Path) PruneWhere(drop func(Entity) bool) int {
	records := p.Records()
	kept := make([]Entity, 0, len(records))
	for _, e := range records {
		if !drop(e) {
			kept = append(kept, e)
		}
	}
	removed := len(records) - len(kept)
	if removed > 0 {
		p.set(kept)
	}
	return removed
}

// NullIfMissing sets field to nil when its value is not a key for which
// exists returns true.
func NullIfMissing(e Entity, field string, exists func(string) bool) {
	v, ok := e[field]
	if !ok || v == nil {
		return
	}
	if key, isKey := keyString(v); !isKey || !exists(key) {
		e[field] = nil
	}
}

// FilterMissing drops every key of the list field for which exists returns
// false. A missing or malformed list becomes empty.
func FilterMissing(e Entity, field string, exists func(string) bool) {
	list, _ := asStrings(e[field])
	kept := make([]string, 0, len(list))
	for _, key := range list {
		if exists(key) {
			kept = append(kept, key)
		}
	}
	e[field] = kept
}
