package store

// keyIndex holds flattened key lists for every registered type so hooks and
// predicates can answer "does key X exist in type T" without walking the
// document. It is rebuilt at the start of each reconciliation pass and lazily
// whenever an accessor mutation marks it dirty.
type keyIndex struct {
	dirty bool

	// keys maps a qualified type name to its keys in document order,
	// duplicates removed.
	keys map[string][]string

	// sets maps a qualified type name to its key set.
	sets map[string]map[string]struct{}

	// scoped maps a qualified sub type name to parent key to key set.
	scoped map[string]map[string]map[string]struct{}

	// scopedKeys maps a qualified sub type name to parent key to keys in
	// document order.
	scopedKeys map[string]map[string][]string
}

func newKeyIndex() *keyIndex {
	return &keyIndex{
		dirty:      true,
		keys:       make(map[string][]string),
		sets:       make(map[string]map[string]struct{}),
		scoped:     make(map[string]map[string]map[string]struct{}),
		scopedKeys: make(map[string]map[string][]string),
	}
}

func (ix *keyIndex) add(typeName, parentKey, key string) {
	set, ok := ix.sets[typeName]
	if !ok {
		set = make(map[string]struct{})
		ix.sets[typeName] = set
	}
	if _, dup := set[key]; !dup {
		set[key] = struct{}{}
		ix.keys[typeName] = append(ix.keys[typeName], key)
	}

	if parentKey == "" {
		return
	}
	byParent, ok := ix.scoped[typeName]
	if !ok {
		byParent = make(map[string]map[string]struct{})
		ix.scoped[typeName] = byParent
		ix.scopedKeys[typeName] = make(map[string][]string)
	}
	pset, ok := byParent[parentKey]
	if !ok {
		pset = make(map[string]struct{})
		byParent[parentKey] = pset
	}
	if _, dup := pset[key]; !dup {
		pset[key] = struct{}{}
		ix.scopedKeys[typeName][parentKey] = append(ix.scopedKeys[typeName][parentKey], key)
	}
}

// rebuildIndex recomputes every derived index from the live document.
func (s *Store) rebuildIndex() {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	s.rebuildIndexLocked()
}

func (s *Store) rebuildIndexLocked() {
	ix := newKeyIndex()
	for _, t := range s.types {
		if t.def.kind() == KindObject {
			continue
		}
		ix.keys[t.name] = []string{}
		parents, _ := asEntities(s.doc[t.name])
		for _, p := range parents {
			pk, ok := keyString(p[t.keyField()])
			if ok {
				ix.add(t.name, "", pk)
			}
			for _, sub := range t.subs {
				if _, seen := ix.keys[sub.name]; !seen {
					ix.keys[sub.name] = []string{}
				}
				children, _ := asEntities(p[sub.def.Name])
				for _, c := range children {
					ck, ok := keyString(c[sub.keyField()])
					if !ok {
						continue
					}
					ix.add(sub.name, pk, ck)
				}
			}
		}
	}
	ix.dirty = false
	s.index = ix
}

func (s *Store) freshIndex() *keyIndex {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	if s.index.dirty {
		s.rebuildIndexLocked()
	}
	return s.index
}

// Has reports whether any entity of the qualified type has the given key.
func (s *Store) Has(typeName, key string) bool {
	ix := s.freshIndex()
	_, ok := ix.sets[typeName][key]
	return ok
}

// HasIn reports whether the sub type has key under the given parent.
func (s *Store) HasIn(typeName, parentKey, key string) bool {
	ix := s.freshIndex()
	_, ok := ix.scoped[typeName][parentKey][key]
	return ok
}

// Keys returns the flattened key list of a type in document order. For sub
// types the list spans every parent.
func (s *Store) Keys(typeName string) []string {
	ix := s.freshIndex()
	out := make([]string, len(ix.keys[typeName]))
	copy(out, ix.keys[typeName])
	return out
}

// KeysIn returns the keys of a sub type under one parent.
func (s *Store) KeysIn(typeName, parentKey string) []string {
	ix := s.freshIndex()
	keys := ix.scopedKeys[typeName][parentKey]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}
