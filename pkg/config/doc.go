// Package config provides document loading, CUE schema validation, Starlark
// predicates and the command line configuration for craig.
//
// # Overview
//
// The store package owns the document and its repair rules but knows nothing
// about files. This package is the layer between the two: it reads and
// writes documents, renders registered entity types as CUE so documents can
// be checked structurally, lets entity types be declared in YAML with
// Starlark expressions for their predicates, and watches document files for
// changes.
//
// # Components
//
// CUEParser: Reads documents written in CUE from files, package directories
// or inline text. Multiple sources are unified, so a document can be split
// across files and carry its own constraints and defaults. Errors keep their
// file, line and column. ValidateConstraints checks a document against
// extra CUE files, e.g. naming rules kept next to the document.
//
// SchemaRegistry: Manages compiled CUE schemas. RegisterEntityTypes renders
// store.TypeDescription values to one #<type> definition per type and a
// #Document definition; ValidateDocument unifies a document with it.
//
// StarlarkEvaluator: Runs Starlark scripts with a timeout and evaluates
// single expressions against an edit-buffer candidate. Predicate, Groups and
// Text turn expressions into store predicates; StateChange turns an
// on_state_change script into a field callback.
//
// CatalogFile: A declarative set of entity types read from YAML and
// registered with a store.
//
// DocumentWatcher: Reloads a document file when it changes on disk.
//
// AppConfig: The craig configuration file, validated with struct tags.
//
// # Documents
//
// LoadDocument and SaveDocument pick the format from the file extension:
//
//	.json         encoding/json, the store's canonical form
//	.yaml, .yml   gopkg.in/yaml.v3
//	.cue          cuelang, files or a package directory
//
// Every format decodes to the same JSON shapes, so a document can be
// converted by loading it and saving it under another extension.
//
// # Usage Example
//
//	s, err := catalog.New()
//	if err != nil {
//	    return err
//	}
//
//	doc, err := config.LoadDocument(ctx, "landing-zone.cue")
//	if err != nil {
//	    return err
//	}
//
//	sr := config.NewSchemaRegistry()
//	if _, err := sr.RegisterEntityTypes(s.DescribeAllEntityTypes()); err != nil {
//	    return err
//	}
//	shapeErrors, err := sr.ValidateDocument(ctx, doc)
//	if err != nil {
//	    return err
//	}
//	for _, ve := range shapeErrors {
//	    fmt.Println(ve)
//	}
//
//	s.Load(doc)
//
// # Declarative Catalogs
//
// Entity types can be added without Go code:
//
//	types:
//	  - name: dns
//	    required: [name, vpcs]
//	    fields:
//	      - name: name
//	        invalid: "not valid_name(entity.get('name', ''))"
//	      - name: vpcs
//	        type: multiselect
//	        groups: "keys('vpcs')"
//	        invalid: "len(entity.get('vpcs') or []) == 0"
//	    references:
//	      - {field: vpcs, target: vpcs, many: true}
//
// Expressions see the candidate as entity, the persisted entity as original,
// the parent key as parent, and read-only lookups into the store (has,
// has_in, keys, keys_in, find). An invalid expression that fails at run time
// counts as invalid; a hide_when expression that fails counts as visible.
//
// # Thread Safety
//
// SchemaRegistry is safe for concurrent use. CUEParser values are not; create
// one per goroutine. Predicates built by StarlarkEvaluator read the store
// through a View and may run concurrently.
package config
