package store

// FieldResult is the evaluation of one property of a candidate.
type FieldResult struct {
	Name     string `json:"name" yaml:"name"`
	Invalid  bool   `json:"invalid" yaml:"invalid"`
	Hidden   bool   `json:"hidden" yaml:"hidden"`
	Required bool   `json:"required" yaml:"required"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Report is the full evaluation of a candidate against its type's schema.
type Report struct {
	Type   string        `json:"type" yaml:"type"`
	Key    string        `json:"key,omitempty" yaml:"key,omitempty"`
	Parent string        `json:"parent,omitempty" yaml:"parent,omitempty"`
	Blocks bool          `json:"blocks_save" yaml:"blocks_save"`
	Fields []FieldResult `json:"fields" yaml:"fields"`
}

// InvalidFields returns the names of visible invalid properties.
func (r *Report) InvalidFields() []string {
	var out []string
	for _, f := range r.Fields {
		if f.Invalid && !f.Hidden {
			out = append(out, f.Name)
		}
	}
	return out
}

// ShouldDisableSave reports whether candidate may not be persisted. Unless
// the definition overrides it, the result is the OR of the Invalid
// predicates of the declared required fields; fields currently hidden do not
// count. It never touches the document.
func (t *EntityType) ShouldDisableSave(candidate Entity, ctx *Context) bool {
	ctx = t.context(ctx)
	def := t.entry.def
	if def.ShouldDisableSave != nil {
		return def.ShouldDisableSave(candidate, ctx)
	}
	for _, name := range def.Required {
		f := &Field{typ: t, spec: def.field(name)}
		if f.Hidden(candidate, ctx) {
			continue
		}
		if f.Invalid(candidate, ctx) {
			return true
		}
	}
	return false
}

// Check evaluates every declared property of candidate and whether the
// candidate as a whole may be saved.
func (t *EntityType) Check(candidate Entity, ctx *Context) *Report {
	ctx = t.context(ctx)
	required := make(map[string]bool, len(t.entry.def.Required))
	for _, name := range t.entry.def.Required {
		required[name] = true
	}

	report := &Report{
		Type:   t.entry.name,
		Key:    candidate.Str(t.entry.keyField()),
		Parent: ctx.Parent,
		Blocks: t.ShouldDisableSave(candidate, ctx),
	}
	for _, f := range t.Fields() {
		res := FieldResult{
			Name:     f.Name(),
			Required: required[f.Name()],
			Hidden:   f.Hidden(candidate, ctx),
			Invalid:  f.Invalid(candidate, ctx),
		}
		if res.Invalid {
			res.Message = f.InvalidText(candidate, ctx)
		}
		report.Fields = append(report.Fields, res)
	}
	return report
}

// CheckAll evaluates every persisted entity of every registered type (and
// sub type) as if it were being edited again. It is a read-only audit used
// by tooling to flag documents that were loaded from outside.
func (s *Store) CheckAll() []*Report {
	type target struct {
		t      *EntityType
		entity Entity
		parent string
	}

	s.mu.RLock()
	var targets []target
	for _, top := range s.types {
		entries := append([]*registered{top}, top.subs...)
		for _, entry := range entries {
			et := &EntityType{store: s, entry: entry}
			s.eachEntity(entry, func(e Entity, pk string) {
				targets = append(targets, target{t: et, entity: e.Clone(), parent: pk})
			})
		}
	}
	s.mu.RUnlock()

	reports := make([]*Report, 0, len(targets))
	for _, tg := range targets {
		ctx := tg.t.Context(tg.parent, tg.entity)
		reports = append(reports, tg.t.Check(tg.entity, ctx))
	}
	return reports
}

// DuplicateKeys returns the keys used by more than one entity of a type, in
// document order. Sub-type keys are compared per parent.
func (s *Store) DuplicateKeys(typeName string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byName[typeName]
	if !ok || t.def.kind() == KindObject {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	s.eachEntity(t, func(e Entity, pk string) {
		key, ok := keyString(e[t.keyField()])
		if !ok {
			return
		}
		scoped := pk + "\x00" + key
		counts[scoped]++
		if counts[scoped] == 2 {
			order = append(order, key)
		}
	})
	return order
}
