package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/averev/signlink/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite. It exists for local
// development and tests; production deployments talk to the hosted Postgres
// through PostgrestStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_conversation (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		cleaned_text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_pair ON chat_conversation(sender_id, receiver_id, created_at);

	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'normal'
	);

	CREATE TABLE IF NOT EXISTS conversation (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_owner ON conversation(user_id, created_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(conversation_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertMessage appends one conversation record.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	out := *msg
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO chat_conversation (id, sender_id, receiver_id, raw_text, cleaned_text, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		out.ID, out.SenderID, out.ReceiverID,
		out.RawText, out.CleanedText, out.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &out, nil
}

// Conversation returns messages between two users, most recent first.
func (s *SQLiteStore) Conversation(ctx context.Context, userID, otherUserID string, limit, offset int) ([]domain.Message, int, error) {
	pairFilter := `((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))`
	args := []interface{}{userID, otherUserID, otherUserID, userID}

	var total int
	countQuery := `SELECT COUNT(*) FROM chat_conversation WHERE ` + pairFilter
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversation: %w", err)
	}

	query := `
		SELECT id, sender_id, receiver_id, raw_text, cleaned_text, created_at
		FROM chat_conversation
		WHERE ` + pairFilter + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.RawText, &msg.CleanedText, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan message row: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate conversation rows: %w", err)
	}

	return messages, total, nil
}

// ProfileStatus returns the accessibility status for a user.
func (s *SQLiteStore) ProfileStatus(ctx context.Context, userID string) (domain.AccessibilityStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM profiles WHERE id = ?`, userID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query profile status: %w", err)
	}
	return domain.AccessibilityStatus(status), nil
}

// InsertConversation creates an assistant chat thread.
func (s *SQLiteStore) InsertConversation(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	out := *conv
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		out.ID, out.UserID, out.Title, out.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return &out, nil
}

// ConversationMeta returns one assistant thread scoped to its owner.
func (s *SQLiteStore) ConversationMeta(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at FROM conversation WHERE id = ? AND user_id = ?`,
		conversationID, userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	return &conv, nil
}

// Conversations lists a user's assistant threads, newest first.
func (s *SQLiteStore) Conversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at FROM conversation WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var createdAt int64
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conv.CreatedAt = time.Unix(0, createdAt).UTC()
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return convs, nil
}

// InsertConversationMessage appends one turn to an assistant thread.
func (s *SQLiteStore) InsertConversationMessage(ctx context.Context, msg *domain.ConversationMessage) (*domain.ConversationMessage, error) {
	out := *msg
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		out.ID, out.ConversationID, out.Role, out.Content, out.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation message: %w", err)
	}
	return &out, nil
}

// ConversationMessages returns every turn of an assistant thread, oldest first.
func (s *SQLiteStore) ConversationMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ConversationMessage
	for rows.Next() {
		var msg domain.ConversationMessage
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return msgs, nil
}

// UpsertProfile creates or updates an accessibility profile. Used by the
// sqlite backend only; with Supabase the auth trigger owns profile rows.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	query := `
	INSERT INTO profiles (id, status) VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET status = excluded.status`
	if _, err := s.db.ExecContext(ctx, query, profile.ID, string(profile.Status)); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
