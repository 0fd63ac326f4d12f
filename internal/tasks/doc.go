// Package tasks is the sync engine that keeps a project's rows, its remote storage and its marketplace units in step.
//
// # Core Operations
//
// The [SyncEngine] interface covers a project's whole life:
//
//  1. [SyncEngine.ImportChunks] : copy audio chunks in and create one row each
//  2. [SyncEngine.UploadAudio] and [SyncEngine.PublishQuestions] : put audio and question documents into storage
//  3. [SyncEngine.CreateUnits] : post one work unit per published row
//  4. [SyncEngine.Collect] and [SyncEngine.Review] : copy transcripts back and approve or reject them
//  5. [SyncEngine.ReapExpired] : free rows whose units expired unworked
//  6. [SyncEngine.Finish] : remove every unit and every remote file
//
// # Write-Ahead Markers
//
// Storage operations share one protocol. Before a batch is sent, every row in it is marked
// uncertain and the rows file is rewritten. After the batch succeeds the rows are marked with
// the target state. A crash in between leaves uncertain rows, which the next run resolves by
// probing each public URL before choosing new work. Running any operation twice in a row
// performs no remote work and leaves the rows file byte-identical.
//
// Remote names are resolved from row URLs before anything is marked; a URL outside the
// configured storage location fails with [shared.ErrConfigMismatch].
//
// # Unit Creation
//
// Units are created one by one and rows are only written once the whole batch exists. If any
// creation fails, the units already created are removed and the errors are joined.
//
// # Progress Reporting
//
// All long operations take an optional channel of [ProgressUpdate]. Sends use select with
// default so a slow reader never blocks the engine.
package tasks
