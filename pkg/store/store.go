package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Recorder receives operational measurements from a store. The telemetry
// package provides a Prometheus implementation.
type Recorder interface {
	// ObserveMutation records one external mutating call.
	ObserveMutation(typeName, operation string)

	// ObserveReconcile records one reconciliation pass.
	ObserveReconcile(duration time.Duration, hooks, failures int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, string) {}
func (nopRecorder) ObserveReconcile(time.Duration, int, int) {}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for reconciliation diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With().Str("component", "store").Logger()
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithDocument seeds the store with an externally-sourced document. It is
// reconciled by the first call to Reconcile.
func WithDocument(doc Document) Option {
	return func(s *Store) {
		if doc != nil {
			s.doc = doc.Clone()
		}
	}
}

// registered is a registry entry. Sub types point at their parent entry.
type registered struct {
	name     string // qualified: "vpcs" or "vpcs.subnets"
	def      *FieldDefinition
	parent   *registered
	subs     []*registered
	position int
}

func (r *registered) keyField() string {
	return r.def.keyField()
}

// Store owns the canonical document and the field registry. A Store is
// constructed explicitly and threaded through every hook and handler; there
// is no package-level instance.
//
// Façade calls (EntityType.Create/Save/Delete, Load, Reconcile) hold the
// store's lock for the whole mutation plus repair pass, so readers using
// Snapshot or a View never observe a document mid-repair. Hooks and custom
// handlers run under that lock and must use the Store's accessor methods,
// not a View.
type Store struct {
	mu sync.RWMutex

	doc      Document
	types    []*registered
	byName   map[string]*registered
	onUpdate func()

	idxMu sync.Mutex
	index *keyIndex

	logger   zerolog.Logger
	recorder Recorder
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		doc:      Document{},
		byName:   make(map[string]*registered),
		index:    newKeyIndex(),
		logger:   zerolog.Nop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an entity type to the registry under name and initializes its
// collection in the document. Registration order is the order repair hooks
// run in.
func (s *Store) Register(name string, def FieldDefinition) error {
	if def.Name == "" {
		def.Name = name
	}
	if def.Name != name {
		return invalidDefinition(name, fmt.Sprintf("definition name %q does not match %q", def.Name, name))
	}
	if err := validateDefinition(&def, false); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return newError(ErrorClassRegistration, ErrCodeAlreadyRegistered,
			fmt.Sprintf("entity type %q already registered", name), nil).WithType(name)
	}

	entry := &registered{
		name:     name,
		def:      &def,
		position: len(s.types),
	}
	for _, sub := range def.SubComponents {
		child := &registered{
			name:     name + "." + sub.Name,
			def:      sub,
			parent:   entry,
			position: entry.position,
		}
		entry.subs = append(entry.subs, child)
		s.byName[child.name] = child
	}
	s.types = append(s.types, entry)
	s.byName[name] = entry

	if def.Init != nil {
		def.Init(s)
	} else if _, ok := s.doc[name]; !ok {
		s.doc[name] = def.defaultValue()
	}
	s.touch()

	s.logger.Debug().
		Str("type", name).
		Int("position", entry.position).
		Int("sub_types", len(entry.subs)).
		Msg("Entity type registered")

	return nil
}

func validateDefinition(def *FieldDefinition, isSub bool) error {
	if def.Name == "" {
		return invalidDefinition("", "entity type name is required")
	}
	if strings.Contains(def.Name, ".") {
		return invalidDefinition(def.Name, "entity type name must not contain '.'")
	}
	if isSub && def.kind() != KindCollection {
		return invalidDefinition(def.Name, "sub types must be collections")
	}
	if def.kind() == KindObject && len(def.SubComponents) > 0 {
		return invalidDefinition(def.Name, "object types cannot declare sub types")
	}
	if isSub && len(def.SubComponents) > 0 {
		return invalidDefinition(def.Name, "sub types cannot declare further sub types")
	}

	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if f == nil || f.Name == "" {
			return invalidDefinition(def.Name, "field name is required")
		}
		if seen[f.Name] {
			return invalidDefinition(def.Name, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
	}
	for _, req := range def.Required {
		if !seen[req] {
			return invalidDefinition(def.Name, fmt.Sprintf("required field %q is not declared", req))
		}
	}
	for _, ref := range def.References {
		if ref.Field == "" || ref.Target == "" {
			return invalidDefinition(def.Name, "reference field and target are required")
		}
	}
	for _, m := range def.Mirrors {
		if def.referenceFor(m.From) == nil {
			return invalidDefinition(def.Name, fmt.Sprintf("mirror %q reads from undeclared reference %q", m.Field, m.From))
		}
	}

	subs := make(map[string]bool, len(def.SubComponents))
	for _, sub := range def.SubComponents {
		if sub == nil {
			return invalidDefinition(def.Name, "nil sub type")
		}
		if err := validateDefinition(sub, true); err != nil {
			return err
		}
		if subs[sub.Name] {
			return invalidDefinition(def.Name, fmt.Sprintf("duplicate sub type %q", sub.Name))
		}
		subs[sub.Name] = true
	}
	return nil
}

func (d *FieldDefinition) referenceFor(field string) *Reference {
	for i := range d.References {
		if d.References[i].Field == field {
			return &d.References[i]
		}
	}
	return nil
}

// Type returns the façade for a registered entity type. Sub types may be
// addressed as "parent.sub".
func (s *Store) Type(name string) (*EntityType, error) {
	s.mu.RLock()
	entry, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return nil, notRegistered(name)
	}
	return &EntityType{store: s, entry: entry}, nil
}

// MustType is like Type but panics when name was never registered. An
// unknown name is a wiring defect, not bad data.
func (s *Store) MustType(name string) *EntityType {
	t, err := s.Type(name)
	if err != nil {
		panic(err)
	}
	return t
}

// TypeNames returns the registered top-level type names in registration
// order.
func (s *Store) TypeNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.types))
	for _, t := range s.types {
		names = append(names, t.name)
	}
	return names
}

// Create runs the create operation of the named type.
func (s *Store) Create(name string, data Entity, opts Options) error {
	t, err := s.Type(name)
	if err != nil {
		return err
	}
	t.Create(data, opts)
	return nil
}

// Save runs the save operation of the named type.
func (s *Store) Save(name string, data Entity, opts Options) error {
	t, err := s.Type(name)
	if err != nil {
		return err
	}
	t.Save(data, opts)
	return nil
}

// Delete runs the delete operation of the named type.
func (s *Store) Delete(name string, opts Options) error {
	t, err := s.Type(name)
	if err != nil {
		return err
	}
	t.Delete(opts)
	return nil
}

// SetUpdateCallback installs the single notification subscriber, replacing
// any previous one. It fires once per external mutating call, after the
// reconciliation pass completes.
func (s *Store) SetUpdateCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// Load replaces the document with a copy of doc and reconciles it into a
// schema-valid shape.
func (s *Store) Load(doc Document) {
	s.mutate("", "load", func() {
		if doc == nil {
			s.doc = Document{}
		} else {
			s.doc = doc.Clone()
		}
		s.touch()
	})
}

// LoadJSON decodes and loads a JSON document.
func (s *Store) LoadJSON(data []byte) error {
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	s.Load(doc)
	return nil
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// JSON encodes the current document.
func (s *Store) JSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.JSON()
}

// View returns a read-only window onto the live document for predicates.
func (s *Store) View() View {
	return View{s: s}
}

// mutate runs fn and a full reconciliation pass under the lock, then fires
// the notification callback outside it.
func (s *Store) mutate(typeName, operation string, fn func()) {
	cb := func() func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		fn()
		s.reconcile()
		return s.onUpdate
	}()

	if typeName != "" {
		s.recorder.ObserveMutation(typeName, operation)
	}
	if cb != nil {
		cb()
	}
}

// touch marks derived indices stale.
func (s *Store) touch() {
	s.idxMu.Lock()
	s.index.dirty = true
	s.idxMu.Unlock()
}

// eachEntity visits every entity of a registered type, passing the parent key
// for sub types.
func (s *Store) eachEntity(t *registered, fn func(e Entity, parentKey string)) {
	if t.parent == nil {
		if t.def.kind() == KindObject {
			if obj, ok := asEntity(s.doc[t.name]); ok {
				fn(obj, "")
			}
			return
		}
		list, _ := asEntities(s.doc[t.name])
		for _, e := range list {
			fn(e, "")
		}
		return
	}

	parents, _ := asEntities(s.doc[t.parent.name])
	for _, p := range parents {
		pk, _ := keyString(p[t.parent.keyField()])
		children, _ := asEntities(p[t.def.Name])
		for _, c := range children {
			fn(c, pk)
		}
	}
}

// Logger returns the store's logger for use by hooks.
func (s *Store) Logger() *zerolog.Logger {
	return &s.logger
}
