// Package journal persists scan sessions and their classification
// results to a local SQLite database under the user's data directory.
// The journal is write-mostly during a session and read back by the
// history command and report writers.
package journal
