package store

// Path addresses a collection of records: either a top-level collection of
// the document or a nested collection inside one entity. A Path whose owner
// could not be resolved is inert; every operation on it is a no-op and every
// lookup is absent.
type Path struct {
	store    *Store
	owner    Entity
	field    string
	keyField string
}

// Revision addresses a single record, found through a Path or as a singleton
// object of the document. Data is nil when nothing matched.
type Revision struct {
	path *Path
	data Entity
}

// Collection returns the path of a top-level collection.
func (s *Store) Collection(name string) *Path {
	return &Path{
		store:    s,
		owner:    Entity(s.doc),
		field:    name,
		keyField: "name",
	}
}

// Object returns the singleton object stored under name. Data is nil when the
// property is absent or not an object.
func (s *Store) Object(name string) *Revision {
	obj, _ := asEntity(s.doc[name])
	return &Revision{
		path: &Path{store: s, owner: Entity(s.doc), field: name, keyField: "name"},
		data: obj,
	}
}

// KeyedBy returns a copy of the path matching entities on field instead of
// "name".
func (p *Path) KeyedBy(field string) *Path {
	cp := *p
	if field != "" {
		cp.keyField = field
	}
	return &cp
}

// Resolved reports whether the path's owner exists.
func (p *Path) Resolved() bool {
	return p != nil && p.owner != nil
}

// Exists reports whether the collection itself is present and list-shaped.
func (p *Path) Exists() bool {
	if !p.Resolved() {
		return false
	}
	_, ok := asEntities(p.owner[p.field])
	return ok
}

// Records returns the entities of the collection. The slice is fresh but the
// entities alias the live document.
func (p *Path) Records() []Entity {
	if !p.Resolved() {
		return nil
	}
	list, _ := asEntities(p.owner[p.field])
	out := make([]Entity, len(list))
	copy(out, list)
	return out
}

// Len returns the number of entities in the collection.
func (p *Path) Len() int {
	if !p.Resolved() {
		return 0
	}
	list, _ := asEntities(p.owner[p.field])
	return len(list)
}

// Each calls fn for every entity of the collection.
func (p *Path) Each(fn func(Entity)) {
	for _, e := range p.Records() {
		fn(e)
	}
}

// Find returns the first entity whose key field equals key.
func (p *Path) Find(key string) *Revision {
	rev := &Revision{path: p}
	if !p.Resolved() {
		return rev
	}
	list, _ := asEntities(p.owner[p.field])
	if i := indexOf(list, p.keyField, key); i >= 0 {
		rev.data = list[i]
	}
	return rev
}

// Then replaces the collection with the result of fn, for edits the generic
// push/merge/remove primitives cannot express.
func (p *Path) Then(fn func([]Entity) []Entity) *Path {
	if !p.Resolved() {
		return p
	}
	list, _ := asEntities(p.owner[p.field])
	result := fn(list)
	if result == nil {
		result = []Entity{}
	}
	p.owner[p.field] = result
	p.touch()
	return p
}

// set writes list as the collection.
func (p *Path) set(list []Entity) {
	if !p.Resolved() {
		return
	}
	p.owner[p.field] = list
	p.touch()
}

func (p *Path) touch() {
	if p.store != nil {
		p.store.touch()
	}
}

func indexOf(list []Entity, keyField, key string) int {
	for i, e := range list {
		if k, ok := keyString(e[keyField]); ok && k == key {
			return i
		}
	}
	return -1
}

// Data returns the found entity, or nil. It never panics.
func (r *Revision) Data() Entity {
	if r == nil {
		return nil
	}
	return r.data
}

// Found reports whether the revision resolved to an entity.
func (r *Revision) Found() bool {
	return r != nil && r.data != nil
}

// Key returns the key of the found entity, or "".
func (r *Revision) Key() string {
	if !r.Found() || r.path == nil {
		return ""
	}
	k, _ := keyString(r.data[r.path.keyField])
	return k
}

// Update merges every property of partial onto the found entity, overwriting
// on conflict. Values are copied so the document never aliases caller data.
func (r *Revision) Update(partial Entity) *Revision {
	if !r.Found() {
		return r
	}
	for k, v := range partial {
		r.data[k] = cloneValue(v)
	}
	if r.path != nil {
		r.path.touch()
	}
	return r
}

// Then applies fn to the found entity.
func (r *Revision) Then(fn func(Entity)) *Revision {
	if !r.Found() {
		return r
	}
	fn(r.data)
	if r.path != nil {
		r.path.touch()
	}
	return r
}

// Child descends into a nested collection of the found entity. The returned
// path is inert when the entity was not found.
func (r *Revision) Child(collection string) *Path {
	p := &Path{field: collection, keyField: "name"}
	if r != nil && r.path != nil {
		p.store = r.path.store
	}
	if r.Found() {
		p.owner = r.data
	}
	return p
}
