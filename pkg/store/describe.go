package store

// TypeDescription is the declarative shape of a registered entity type.
type TypeDescription struct {
	Name        string             `json:"name" yaml:"name"`
	KeyField    string             `json:"key_field" yaml:"key_field"`
	Kind        CollectionKind     `json:"kind" yaml:"kind"`
	Default     any                `json:"default" yaml:"default"`
	Position    int                `json:"position" yaml:"position"`
	ParentField string             `json:"parent_field,omitempty" yaml:"parent_field,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Fields      []FieldDescription `json:"fields" yaml:"fields"`
	References  []Reference        `json:"references,omitempty" yaml:"references,omitempty"`
	Mirrors     []Mirror           `json:"mirrors,omitempty" yaml:"mirrors,omitempty"`
	Subs        []TypeDescription  `json:"sub_types,omitempty" yaml:"sub_types,omitempty"`
	CustomHook  bool               `json:"custom_hook,omitempty" yaml:"custom_hook,omitempty"`
}

// FieldDescription is the declarative shape of one property.
type FieldDescription struct {
	Name      string    `json:"name" yaml:"name"`
	Type      FieldType `json:"type" yaml:"type"`
	Default   any       `json:"default,omitempty" yaml:"default,omitempty"`
	Values    []string  `json:"values,omitempty" yaml:"values,omitempty"`
	Optional  bool      `json:"optional,omitempty" yaml:"optional,omitempty"`
	Required  bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Reference string    `json:"reference,omitempty" yaml:"reference,omitempty"`
	Many      bool      `json:"many,omitempty" yaml:"many,omitempty"`
	Dynamic   bool      `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
}

// DescribeEntityType returns the declarative shape of one registered type.
// Sub types may be addressed as "parent.sub".
func (s *Store) DescribeEntityType(name string) (TypeDescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byName[name]
	if !ok {
		return TypeDescription{}, notRegistered(name)
	}
	return describe(t), nil
}

// DescribeAllEntityTypes returns the shape of every top-level type in
// registration order, sub types nested.
func (s *Store) DescribeAllEntityTypes() []TypeDescription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TypeDescription, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, describe(t))
	}
	return out
}

func describe(t *registered) TypeDescription {
	def := t.def
	required := make(map[string]bool, len(def.Required))
	for _, name := range def.Required {
		required[name] = true
	}

	desc := TypeDescription{
		Name:        t.name,
		KeyField:    def.keyField(),
		Kind:        def.kind(),
		Default:     def.defaultValue(),
		Position:    t.position,
		ParentField: def.ParentField,
		Required:    append([]string(nil), def.Required...),
		Fields:      make([]FieldDescription, 0, len(def.Fields)),
		References:  append([]Reference(nil), def.References...),
		Mirrors:     append([]Mirror(nil), def.Mirrors...),
		CustomHook:  def.OnStoreUpdate != nil,
	}

	for _, f := range def.Fields {
		fd := FieldDescription{
			Name:     f.Name,
			Type:     f.Type,
			Default:  cloneValue(f.Default),
			Optional: f.Optional,
			Required: required[f.Name],
			Dynamic:  f.Groups != nil,
		}
		if fd.Type == "" {
			fd.Type = FieldText
		}
		if len(f.Values) > 0 {
			fd.Values = append([]string(nil), f.Values...)
		}
		if ref := def.referenceFor(f.Name); ref != nil {
			fd.Reference = ref.Target
			fd.Many = ref.Many
		}
		desc.Fields = append(desc.Fields, fd)
	}

	for _, sub := range t.subs {
		desc.Subs = append(desc.Subs, describe(sub))
	}
	return desc
}
