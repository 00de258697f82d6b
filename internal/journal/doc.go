// Package journal records every external job a render starts in a SQLite
// database under the state directory, so past runs can be listed with the
// history command.
//
// Rows are inserted when a job starts and updated once it finishes. Writes
// retry briefly while another process holds the database lock.
package journal
