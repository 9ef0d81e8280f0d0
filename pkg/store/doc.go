// Package store implements the reactive configuration graph store.
//
// A Store owns one canonical Document: named collections of keyed entities
// and singleton objects that reference each other by key. Entity types are
// registered with a FieldDefinition describing their properties, references,
// mirror fields, nested sub types and optional custom handlers.
//
// Every mutating façade call (EntityType.Create, Save, Delete, Store.Load,
// Store.Reconcile) runs a reconciliation pass before it returns:
//
//  1. Key indices are rebuilt from the live document.
//  2. Each registered type's repair hook runs in registration order, restoring
//     default shapes, nulling or pruning stale references and re-copying
//     mirror fields.
//  3. The update callback fires once, after the store lock is released.
//
// A pass never fails on bad data. Only unregistered type names and malformed
// registrations are reported as errors.
//
// Example usage:
//
//	s := store.New(store.WithLogger(log.Logger))
//	_ = s.Register("vpcs", store.FieldDefinition{})
//	_ = s.Register("vsi", store.FieldDefinition{
//		References: []store.Reference{{Field: "vpc", Target: "vpcs"}},
//	})
//	s.MustType("vpcs").Create(store.Entity{"name": "management"}, store.Options{})
//	s.MustType("vsi").Create(store.Entity{"name": "jump", "vpc": "management"}, store.Options{})
//	s.MustType("vpcs").Delete(store.Options{Key: "management"})
//	// the vsi's vpc field is now nil
//
// Validation runs before any mutation and is read-only:
//
//	vsi := s.MustType("vsi")
//	if vsi.ShouldDisableSave(candidate, vsi.Context("", nil)) {
//		// block the save
//	}
package store
