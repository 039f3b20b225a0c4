// Package eventlog provides the shared JSON event log used by cooperating agent processes.
//
// The log is a single JSON document on disk:
//
//	{
//	  "events": [
//	    { "timestamp": "2026-01-02T15:04:05.000000Z", "event": "workflow_started", "data": {...} }
//	  ]
//	}
//
// Insertion order is append order. Payloads are opaque and never validated.
//
// # Concurrency
//
// A Store serializes Publish, GetEvents and ClearEvents with an in-process mutex.
// Every read-modify-write cycle additionally holds an advisory flock on
// "<path>.lock" so that writers in different processes cannot interleave: readers
// take a shared lock, writers an exclusive one. The lock file is separate from the
// log because the log itself is replaced by rename on every write.
//
// # Durability
//
// Writes go to a temporary file in the same directory, are fsynced, and are then
// renamed over the primary. An interrupted writer leaves either the previous or the
// new document on disk. Corruption can still arrive from outside (a foreign writer,
// a truncated copy, a full disk on another tool), which is what the integrity,
// backup, monitor and repair packages deal with.
//
// # Errors
//
// Failures are returned as *Error with a Code:
//   - IO: the file could not be read or written for OS reasons
//   - CORRUPTION: the file exists but is not an event log document
//   - RESTORE_FAILED: neither the primary nor its backup is valid
//
// Use IsIO, IsCorruption and IsRestoreFailure to branch on the kind.
package eventlog
