// Package core cleans files: it drives the rule pipeline over the rows of a
// source and collects cleaned rows and error records.
//
// # Flow
//
//  1. [Process] looks up the file's [schema.CsvConfig] by basename. Files
//     without one are ingested with [schema.Identity] and passed through.
//  2. Rows are read in chunks of [Options.ChunkSize] and evaluated in
//     parallel by [Pipeline.Evaluate]. Evaluation is pure.
//  3. Each chunk is finalized in row order by [Pipeline.Finalize], which runs
//     the history-dependent checks (unique) against the file's [SeenSets]
//     and applies the [Mode].
//
// Cancellation is checked between chunks. A cancelled run returns its
// partial [RunResult] with Incomplete set; writers refuse to publish it.
//
// [Runner] processes many files concurrently; files share nothing but the
// read-only rules and registry.
//
// # Error Handling
//
// Row problems are data ([ErrorRecord]). Only configuration, registration,
// source and sink errors are returned as errors. [MapError] turns them into
// coded messages for users.
package core
