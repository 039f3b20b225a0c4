// Package history provides SQLite-backed storage for monitor check outcomes.
//
// Every cycle of the monitor daemon is appended to the outcomes table so an
// operator can see when the log was last healthy, how often it was restored,
// and how long it has been unrecoverable.
//
// # Ordering
//
//   - Rows are ordered by seq INTEGER, the insertion order, never by wall time
//   - check_id is UNIQUE; recording the same outcome twice is a no-op
//
// # Database Configuration
//
//   - WAL mode: the CLI can read history while the daemon writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package history
