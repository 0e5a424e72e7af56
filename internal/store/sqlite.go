// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width RFC3339 variant. Fixed width keeps the stored
// strings lexicographically ordered, which the per-conversation message index
// relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	// now is the clock used for message timestamps; replaced in tests
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas go on the DSN so they apply to every connection in the
	// database/sql pool, not just the one a bare Exec happens to grab.
	// The busy timeout makes concurrent writers queue instead of failing
	// with SQLITE_BUSY, which keeps the UNIQUE-violation path reachable
	// when two resolvers race to create the same conversation.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			participant_lo TEXT NOT NULL,
			participant_hi TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_activity_at TEXT NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_participants
			ON conversations(participant_lo, participant_hi);

		CREATE INDEX IF NOT EXISTS idx_conversations_lo_activity
			ON conversations(participant_lo, last_activity_at);

		CREATE INDEX IF NOT EXISTS idx_conversations_hi_activity
			ON conversations(participant_hi, last_activity_at);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateConversation inserts a new conversation. If a conversation already
// exists for the same canonical participant pair, it returns
// ErrDuplicateConversation so the caller can re-fetch the winner of the race.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, participant_lo, participant_hi, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.ParticipantLo,
		conv.ParticipantHi,
		conv.CreatedAt.UTC().Format(timeLayout),
		conv.LastActivityAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation",
		"id", conv.ID,
		"participant_lo", conv.ParticipantLo,
		"participant_hi", conv.ParticipantHi)
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, participant_lo, participant_hi, created_at, last_activity_at
		FROM conversations
		WHERE id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// GetConversationByParticipants retrieves the conversation for a canonical
// participant pair. Callers must order the pair with CanonicalPair first.
// Returns ErrNotFound if no conversation exists for the pair.
func (s *SQLiteStore) GetConversationByParticipants(ctx context.Context, lo, hi string) (*Conversation, error) {
	query := `
		SELECT id, participant_lo, participant_hi, created_at, last_activity_at
		FROM conversations
		WHERE participant_lo = ? AND participant_hi = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, lo, hi))
}

func (s *SQLiteStore) scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var createdAtStr, lastActivityStr string

	err := row.Scan(
		&conv.ID,
		&conv.ParticipantLo,
		&conv.ParticipantHi,
		&createdAtStr,
		&lastActivityStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	conv.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	conv.LastActivityAt, err = time.Parse(timeLayout, lastActivityStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_activity_at: %w", err)
	}

	return &conv, nil
}

// AppendMessage persists a message and bumps the conversation's last-activity
// timestamp in a single transaction. The message's creation timestamp is
// assigned here: if the wall clock reads at or before the previous message in
// the conversation, the previous timestamp plus one microsecond is substituted
// so per-conversation order is strictly increasing.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ts := s.now().UTC()

	var prevStr string
	err = tx.QueryRowContext(ctx, `
		SELECT created_at FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, msg.ConversationID).Scan(&prevStr)
	switch {
	case err == sql.ErrNoRows:
		// first message in the conversation
	case err != nil:
		return fmt.Errorf("querying previous message: %w", err)
	default:
		prev, parseErr := time.Parse(timeLayout, prevStr)
		if parseErr != nil {
			return fmt.Errorf("parsing previous created_at: %w", parseErr)
		}
		if !ts.After(prev) {
			ts = prev.Add(time.Microsecond)
		}
	}

	tsStr := ts.Format(timeLayout)

	// Bump the conversation first: zero rows affected means the
	// conversation does not exist, reported as ErrNotFound before the
	// message insert can trip the foreign key.
	result, err := tx.ExecContext(ctx, `
		UPDATE conversations SET last_activity_at = ? WHERE id = ?
	`, tsStr, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("updating conversation activity: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.RecipientID, msg.Body, tsStr)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	msg.CreatedAt = ts
	s.logger.Debug("appended message",
		"id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender_id", msg.SenderID)
	return nil
}

// GetConversationMessages retrieves messages for a conversation, limited to
// the most recent `limit` messages. Messages are returned in chronological
// order (oldest first). If limit is 0 or negative, all messages are returned.
func (s *SQLiteStore) GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	var query string
	var args []any

	if limit > 0 {
		// Get the N most recent messages, but return them in chronological order
		query = `
			SELECT id, conversation_id, sender_id, recipient_id, body, created_at
			FROM (
				SELECT rowid, id, conversation_id, sender_id, recipient_id, body, created_at
				FROM messages
				WHERE conversation_id = ?
				ORDER BY created_at DESC, rowid DESC
				LIMIT ?
			)
			ORDER BY created_at ASC, rowid ASC
		`
		args = []any{conversationID, limit}
	} else {
		query = `
			SELECT id, conversation_id, sender_id, recipient_id, body, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at ASC, rowid ASC
		`
		args = []any{conversationID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var createdAtStr string

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.RecipientID, &msg.Body, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// GetLastMessage returns the most recent message in a conversation.
// Returns ErrNotFound if the conversation has no messages.
func (s *SQLiteStore) GetLastMessage(ctx context.Context, conversationID string) (*Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, recipient_id, body, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`

	var msg Message
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.RecipientID, &msg.Body, &createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying last message: %w", err)
	}

	msg.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing message created_at: %w", err)
	}

	return &msg, nil
}

// ListUserConversations returns every conversation containing userID, ordered
// by last activity descending, each annotated with the other participant and
// the most recent message. If limit is 0 or negative, a default of 100 is used.
func (s *SQLiteStore) ListUserConversations(ctx context.Context, userID string, limit int) ([]*InboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT c.id, c.participant_lo, c.participant_hi, c.created_at, c.last_activity_at,
		       m.id, m.sender_id, m.recipient_id, m.body, m.created_at
		FROM conversations c
		LEFT JOIN messages m ON m.rowid = (
			SELECT rowid FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, rowid DESC
			LIMIT 1
		)
		WHERE c.participant_lo = ? OR c.participant_hi = ?
		ORDER BY c.last_activity_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying inbox: %w", err)
	}
	defer rows.Close()

	var entries []*InboxEntry
	for rows.Next() {
		var conv Conversation
		var convCreated, convActivity string
		var msgID, msgSender, msgRecipient, msgBody, msgCreated sql.NullString

		if err := rows.Scan(
			&conv.ID, &conv.ParticipantLo, &conv.ParticipantHi, &convCreated, &convActivity,
			&msgID, &msgSender, &msgRecipient, &msgBody, &msgCreated,
		); err != nil {
			return nil, fmt.Errorf("scanning inbox row: %w", err)
		}

		conv.CreatedAt, err = time.Parse(timeLayout, convCreated)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		conv.LastActivityAt, err = time.Parse(timeLayout, convActivity)
		if err != nil {
			return nil, fmt.Errorf("parsing last_activity_at: %w", err)
		}

		entry := &InboxEntry{
			Conversation: &conv,
			OtherUserID:  conv.Other(userID),
		}

		if msgID.Valid {
			msg := &Message{
				ID:             msgID.String,
				ConversationID: conv.ID,
				SenderID:       msgSender.String,
				RecipientID:    msgRecipient.String,
				Body:           msgBody.String,
			}
			msg.CreatedAt, err = time.Parse(timeLayout, msgCreated.String)
			if err != nil {
				return nil, fmt.Errorf("parsing message created_at: %w", err)
			}
			entry.LastMessage = msg
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inbox rows: %w", err)
	}

	return entries, nil
}

// CreateUser inserts a user into the directory. The marketplace registration
// flow owns this table; the chat core calls it only from tests and tooling.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	query := `
		INSERT INTO users (id, display_name, created_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.DisplayName,
		user.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID)
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, display_name, created_at FROM users WHERE id = ?`

	var user User
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.DisplayName, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// UserExists reports whether a user with the given ID is registered.
func (s *SQLiteStore) UserExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying user existence: %w", err)
	}
	return true, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
