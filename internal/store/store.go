// Package store provides conversation persistence interfaces and
// implementations. Uniqueness, referential integrity, and access policy are
// owned by the backing store; this layer only shapes requests and rows.
package store

import (
	"context"
	"errors"

	"github.com/averev/signlink/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidIdentifier is returned when a caller-supplied identifier contains
// characters that cannot appear in a stored ID.
var ErrInvalidIdentifier = errors.New("store: invalid identifier")

// ValidIdentifier reports whether s is safe to use as a record identifier in
// a query filter: 1-64 characters, letters, digits, hyphen, underscore. This
// covers UUIDs and every ID either backend mints, and rejects PostgREST
// filter syntax (dots, commas, parentheses).
func ValidIdentifier(s string) bool {
	if len(s) == 0 || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// Repository defines conversation and profile persistence.
type Repository interface {
	// InsertMessage appends one conversation record and returns it with the
	// store-assigned ID and timestamp filled in.
	InsertMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)

	// Conversation returns a most-recent-first slice of the bidirectional
	// conversation between two users plus the total message count. Both
	// identifiers must satisfy ValidIdentifier.
	Conversation(ctx context.Context, userID, otherUserID string, limit, offset int) ([]domain.Message, int, error)

	// ProfileStatus returns the accessibility status for a user, or
	// ErrNotFound when no profile row exists.
	ProfileStatus(ctx context.Context, userID string) (domain.AccessibilityStatus, error)

	// InsertConversation creates an assistant chat thread and returns it with
	// the store-assigned ID and timestamp filled in.
	InsertConversation(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error)

	// ConversationMeta returns one assistant thread, scoped to its owner;
	// ErrNotFound covers both a missing thread and someone else's.
	ConversationMeta(ctx context.Context, conversationID, userID string) (*domain.Conversation, error)

	// Conversations lists a user's assistant threads, newest first.
	Conversations(ctx context.Context, userID string) ([]domain.Conversation, error)

	// InsertConversationMessage appends one turn to an assistant thread.
	InsertConversationMessage(ctx context.Context, msg *domain.ConversationMessage) (*domain.ConversationMessage, error)

	// ConversationMessages returns every turn of an assistant thread, oldest
	// first.
	ConversationMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error)

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection, if any.
	Close() error
}
