// Package models defines the local record types shared by the sync engine.
//
// A project is tracked as an ordered list of [Row] values, one per audio chunk.
// Each row carries the identity of its remote work unit (if any) and a
// tri-state [Marker] per uploaded [Asset]:
//
//   - [MarkerDone] : the asset is known to exist remotely
//   - [MarkerNotDone] : the asset is known to be absent (or was never attempted)
//   - [MarkerUncertain] : a batch operation was started but not confirmed
//
// Rows are persisted by repositories.RowStore; the engine in package tasks
// reads and rewrites them around every remote batch.
package models
