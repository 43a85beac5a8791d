// Package reconcile is the comparison reconciliation engine.
//
// An upstream pipeline writes one wide row per compared entity: for every field F
// the row carries F_Source and F_Dest (the two compared values) and
// F_Selected and F_SelectedSource (the persisted resolution). This package
// turns those rows into records an operator can resolve field by field, and
// writes the resolutions back.
//
// # Components
//
//  1. Discoverer: derives the field list from the table's columns. A field F
//     exists iff a column F_Source exists. Results are sorted and cached with
//     singleflight stampede protection.
//
//  2. Loader: streams the rows (optionally filtered by pipeline run) into
//     ComparisonRecords. Loading is all-or-nothing.
//
//  3. FieldComparison / Engine: the per-field state machine. Pending is the
//     initial state of every differing field; Accept selects the source value,
//     Reject keeps the destination value; every state is reachable from every
//     other and the last call wins. Fields without a difference are not
//     eligible (ErrNotEligible).
//
//  4. Writer: persists the resolutions of differing fields, one parameterised
//     UPDATE per record, all inside a single transaction.
//
// # Stored tags
//
// The pipeline pre-fills F_SelectedSource with "Source". That default is not a
// decision: only "Dest" (rejected) and the confirmed marker "Accepted" load as
// resolved. The Writer therefore stores "Accepted" for accepted fields.
//
// # Usage Example
//
//	schema := reconcile.NewDiscoverer(db, cfg.Comparison, log)
//	loader := reconcile.NewLoader(db, schema, cfg.Comparison, log)
//	writer := reconcile.NewWriter(db, cfg.Comparison, log)
//
//	records, err := loader.Load(ctx, &runID)
//	engine := reconcile.NewEngine(records)
//	_, err = engine.Reject(42, "Email")
//	result, err := writer.Save(ctx, engine.Snapshot())
package reconcile
