// Package security implements storage of the security state: the sensor set,
// the alarm status and the arming status.
//
// The Repository interface is what the security controller depends on.
// MemoryRepository keeps everything in process, FileRepository persists a JSON
// document on disk and SQLiteRepository stores the state in a SQLite database.
package security
