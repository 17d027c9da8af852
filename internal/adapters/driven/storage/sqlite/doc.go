// Package sqlite provides SQLite-backed persistence for docstash.
//
// One Store serves both sides of the pipeline: the transactional
// ArtifactStore consumed by the ingest orchestrator, and the read-only
// LibraryStore consumed by the serving layer. Schema changes are
// applied through embedded SQL migrations at open time.
package sqlite
