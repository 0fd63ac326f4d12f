// Package repositories implements local persistence for a transcription project.
//
// Two stores live here:
//   - [RowStore] : the project record, one CSV row per audio chunk, rewritten atomically on every change
//   - [UnitCache] : the lifecycle cache, a SQLite-backed key/snapshot map for work units that never need re-fetching
//
// Neither store locks across processes; one engine instance per project is assumed.
package repositories
