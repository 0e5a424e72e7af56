// Package store provides persistent storage for the chat gateway using SQLite.
//
// # Architecture
//
// The Store interface covers three concerns:
//
//   - Conversations: the durable mapping from a canonical participant pair to
//     exactly one conversation, plus per-user inbox listing
//   - Messages: an append-only, per-conversation ordered log
//   - Users: the read-side of the marketplace user directory, used to
//     validate participants
//
// SQLiteStore implements the interface over a single database file shared
// with the marketplace CRUD layer.
//
// # Uniqueness
//
// Participants are stored in canonical (lexicographic) order with a UNIQUE
// index on the pair. CreateConversation maps a constraint violation to
// ErrDuplicateConversation, which callers treat as "someone else just created
// it" and re-fetch. This closes the race where both participants message each
// other in the same instant.
//
// # Ordering
//
// AppendMessage assigns timestamps inside the insert transaction and clamps
// them to strictly after the previous message in the conversation, so history
// order never regresses even if the wall clock does. Timestamps are stored in
// a fixed-width RFC3339 form that sorts lexicographically.
//
// # SQLite Configuration
//
// Pragmas are set through the DSN so they apply to every pooled
// connection:
//
//	busy_timeout(5000)
//	journal_mode(WAL)
//	foreign_keys(1)
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateConversation: a conversation already exists for the pair
package store
