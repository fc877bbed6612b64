// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/lexrelay/internal/domain"
)

// UserStore persists user identities.
type UserStore interface {
	// GetUser retrieves a user by ID. Returns domain.ErrNotFound when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email. Returns domain.ErrNotFound when absent.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateUser inserts a new user. ID and CreatedAt are assigned when empty.
	// Returns domain.ErrConflict when the email is already taken.
	CreateUser(ctx context.Context, user *domain.User) error

	// UpdateUserName replaces the display name of an existing user.
	UpdateUserName(ctx context.Context, userID, name string) error
}

// ChatStore is the registry of conversation threads.
type ChatStore interface {
	// CreateChat inserts a chat. ID and CreatedAt are assigned when empty.
	// Returns domain.ErrNotFound when the owner does not exist.
	CreateChat(ctx context.Context, chat *domain.Chat) error

	// GetChat retrieves a chat by ID. Returns domain.ErrNotFound when absent.
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)

	// ListChatsByUser returns the user's chats, newest first.
	ListChatsByUser(ctx context.Context, userID string) ([]*domain.Chat, error)

	// RenameChat updates the chat name and returns the updated chat.
	RenameChat(ctx context.Context, chatID, name string) (*domain.Chat, error)

	// DeleteChat removes the chat and all of its messages atomically.
	DeleteChat(ctx context.Context, chatID string) error
}

// MessageStore is the append-only log of chat turns.
type MessageStore interface {
	// AppendMessage stores msg, assigning ID, Seq and SentAt.
	// Returns domain.ErrNotFound when the chat does not exist.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns at most limit messages of a chat, oldest first.
	ListMessages(ctx context.Context, chatID string, limit int, window domain.ReadWindow) ([]*domain.Message, error)
}

// Repository bundles every store behind one long-lived database handle.
type Repository interface {
	UserStore
	ChatStore
	MessageStore

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
