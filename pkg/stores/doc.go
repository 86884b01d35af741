// Package stores keeps the history of query runs in SQLite.
// The schema is managed with embedded golang-migrate migrations and the
// database runs in WAL mode with a bounded connection pool.
package stores
