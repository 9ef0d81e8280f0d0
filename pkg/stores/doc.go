// Package stores keeps the history of configuration documents in SQLite.
//
// Every write of a document can be recorded as a Snapshot: the full JSON
// document with its sha256 hash and entity count. Snapshots back the
// backup, history and restore commands. The same database holds an
// append-only log of telemetry events and an audit log of entity
// mutations.
//
// Schema changes are embedded migrations applied with golang-migrate:
//
//	st, err := stores.Open(ctx, ".craig-history.db")
//	if err != nil {
//		return err
//	}
//	defer st.Close()
//
//	snap, _ := stores.NewSnapshot("craig.json", stores.OperationBackup, "", doc)
//	saved, err := stores.Record(ctx, st, snap, 50)
package stores
