package store

// View is a read-only window onto a store's live document, handed to
// predicates through Context. Entities returned by a View are copies.
type View struct {
	s *Store
}

// Valid reports whether the view is bound to a store.
func (v View) Valid() bool {
	return v.s != nil
}

// Has reports whether any entity of the qualified type has key.
func (v View) Has(typeName, key string) bool {
	if v.s == nil {
		return false
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.Has(typeName, key)
}

// HasIn reports whether the sub type has key under parentKey.
func (v View) HasIn(typeName, parentKey, key string) bool {
	if v.s == nil {
		return false
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.HasIn(typeName, parentKey, key)
}

// Keys returns the flattened key list of a type.
func (v View) Keys(typeName string) []string {
	if v.s == nil {
		return nil
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.Keys(typeName)
}

// KeysIn returns the keys of a sub type under one parent.
func (v View) KeysIn(typeName, parentKey string) []string {
	if v.s == nil {
		return nil
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.KeysIn(typeName, parentKey)
}

// Find returns a copy of the entity of a qualified type with key, or nil.
func (v View) Find(typeName, parentKey, key string) Entity {
	if v.s == nil {
		return nil
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.Lookup(typeName, parentKey, key).Clone()
}

// Object returns a copy of a singleton object, or nil.
func (v View) Object(name string) Entity {
	if v.s == nil {
		return nil
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.Object(name).Data().Clone()
}

// Records returns copies of every entity of a collection. For sub types,
// parentKey selects the parent; an empty parentKey spans all parents.
func (v View) Records(typeName, parentKey string) []Entity {
	if v.s == nil {
		return nil
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	t, ok := v.s.byName[typeName]
	if !ok {
		return nil
	}
	var out []Entity
	v.s.eachEntity(t, func(e Entity, pk string) {
		if parentKey != "" && t.parent != nil && pk != parentKey {
			return
		}
		out = append(out, e.Clone())
	})
	return out
}
