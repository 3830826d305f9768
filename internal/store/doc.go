// Package store keeps a SQLite history of conformance runs, so a step's
// behaviour can be compared across deployments.
//
// A run is one row in runs (metadata plus summary counts) and one row per
// executed step in results, keyed by (run_id, seq). seq is the step's
// position in the run; reads order by it and never by timestamp. Deleting
// a run cascades to its results.
//
// Connections run in WAL mode with synchronous=NORMAL, a 5s busy timeout
// and foreign keys on. Timestamps are UTC RFC 3339 text with milliseconds,
// which sorts lexically.
package store
