// Package presence tracks which users currently hold live transport
// connections.
//
// The Registry is the single authoritative, in-memory record of live
// connections for the process. It is keyed by user ID and set-valued: a user
// with several open tabs or devices owns several independent connections, and
// only the removal of the last one takes the user offline.
//
// Locking is sharded by user key so that connect/disconnect storms on
// different users never contend on a single registry-wide lock. Registry
// operations are purely in-memory and never wait on storage I/O.
//
// Whenever the set of online users changes, the full presence snapshot is
// pushed to every live connection.
package presence
