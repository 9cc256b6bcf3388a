// Package jobstore provides the Postgres-backed, CAS-based job queues used by
// the search, readme, and classify stages. Each stage gets its own table and
// its own store type, but all three share the same claim protocol: an atomic
// UPDATE ... WHERE id = (SELECT ... FOR UPDATE SKIP LOCKED) RETURNING *, so a
// claim can never race with another worker's claim.
package jobstore

import "time"

// staleAfter is how long a job may sit in "running" before a worker's crash
// or restart is assumed and the row is recovered back to pending.
const staleAfter = 30 * time.Minute
