package store

// Push appends entity to the collection without any uniqueness check. A
// missing or malformed collection under a resolved owner is started fresh.
func (p *Path) Push(entity Entity) {
	if !p.Resolved() || entity == nil {
		return
	}
	list, _ := asEntities(p.owner[p.field])
	next := make([]Entity, len(list), len(list)+1)
	copy(next, list)
	next = append(next, entity.Clone())
	p.set(next)
}

// UpdateChild finds the entity with key and merges partial onto it in place.
// Unspecified properties of the target are left untouched.
func (p *Path) UpdateChild(key string, partial Entity) {
	p.Find(key).Update(partial)
}

// Carve removes the first entity matching key and returns it, or nil when
// nothing matched.
func (p *Path) Carve(key string) Entity {
	if !p.Resolved() {
		return nil
	}
	list, _ := asEntities(p.owner[p.field])
	i := indexOf(list, p.keyField, key)
	if i < 0 {
		return nil
	}
	removed := list[i]
	next := make([]Entity, 0, len(list)-1)
	next = append(next, list[:i]...)
	next = append(next, list[i+1:]...)
	p.set(next)
	return removed
}

// Sub resolves the parent entity by parentKey and returns the path of its
// nested collection named sub.
func (p *Path) Sub(parentKey, sub string) *Path {
	return p.Find(parentKey).Child(sub)
}

// PushSub appends entity to the nested collection of the parent with
// parentKey. No-op when the parent does not resolve.
func (p *Path) PushSub(parentKey, sub string, entity Entity) {
	p.Sub(parentKey, sub).Push(entity)
}

// UpdateSub merges partial onto the sub-entity with key under the parent with
// parentKey.
func (p *Path) UpdateSub(parentKey, sub, key string, partial Entity) {
	p.Sub(parentKey, sub).UpdateChild(key, partial)
}

// CarveSub removes the sub-entity with key under the parent with parentKey.
func (p *Path) CarveSub(parentKey, sub, key string) Entity {
	return p.Sub(parentKey, sub).Carve(key)
}
