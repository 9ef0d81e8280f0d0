package store

import (
	"bytes"
	"fmt"
	"time"
)

// Reconcile runs one full reconciliation pass and then fires the update
// callback. Use it after loading a document by other means, or to settle a
// cascade deeper than one pass.
func (s *Store) Reconcile() {
	s.mutate("", "reconcile", func() {})
}

// ReconcileUntilStable repeats reconciliation passes until the document stops
// changing or maxPasses is reached. It returns the number of passes run and
// whether the document settled. The callback fires once, at the end.
func (s *Store) ReconcileUntilStable(maxPasses int) (int, bool) {
	if maxPasses < 1 {
		maxPasses = 1
	}

	passes := 0
	stable := false
	s.mutate("", "reconcile", func() {
		before, err := s.doc.JSON()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Document is not JSON encodable, running single pass")
			return
		}
		for passes < maxPasses {
			s.reconcile()
			passes++
			after, err := s.doc.JSON()
			if err != nil {
				return
			}
			if bytes.Equal(before, after) {
				stable = true
				return
			}
			before = after
		}
	})
	// mutate runs one trailing pass, a no-op once the document is stable.
	return passes, stable
}

// reconcile is one pass: rebuild indices, then every repair hook in
// registration order. The caller holds the lock.
func (s *Store) reconcile() {
	start := time.Now()
	s.rebuildIndex()

	failures := 0
	for _, t := range s.types {
		if !s.runHook(t) {
			failures++
		}
	}

	duration := time.Since(start)
	s.recorder.ObserveReconcile(duration, len(s.types), failures)
	s.logger.Debug().
		Int("hooks", len(s.types)).
		Int("failures", failures).
		Dur("duration", duration).
		Msg("Reconciliation pass completed")
}

// runHook invokes one type's repair hook. A panicking hook is recovered and
// the type's collection is reset toward its declared default shape so the
// pass can continue.
func (s *Store) runHook(t *registered) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.logger.Error().
				Str("type", t.name).
				Str("panic", fmt.Sprint(r)).
				Msg("Repair hook failed, coercing to default shape")
			s.ensureShape(t)
		}
	}()

	if t.def.OnStoreUpdate != nil {
		t.def.OnStoreUpdate(s)
	} else {
		s.StandardRepair(t.name)
	}
	return true
}
