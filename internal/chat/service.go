// Package chat implements conversation management and the turn orchestrator.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/lexrelay/internal/completion"
	"github.com/ashureev/lexrelay/internal/config"
	"github.com/ashureev/lexrelay/internal/domain"
	"github.com/ashureev/lexrelay/internal/identity"
	"github.com/ashureev/lexrelay/internal/store"
)

const defaultGenerationTimeout = 60 * time.Second

// Options tunes the service. Zero values fall back to the documented defaults.
type Options struct {
	SystemPrompt      string
	GenerationTimeout time.Duration
	DefaultLimit      int
	MaxLimit          int
	Window            domain.ReadWindow
	SerializePerChat  bool
	DiagnosticMaxLen  int
}

// OptionsFromConfig maps loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SystemPrompt:      cfg.LLM.SystemPrompt,
		GenerationTimeout: cfg.LLM.Timeout,
		DefaultLimit:      cfg.Messages.DefaultLimit,
		MaxLimit:          cfg.Messages.MaxLimit,
		Window:            cfg.Messages.Window,
		SerializePerChat:  cfg.Turns.SerializePerChat,
		DiagnosticMaxLen:  cfg.Turns.DiagnosticMaxLen,
	}
}

// Deps are the collaborators injected into the service.
type Deps struct {
	Chats    store.ChatStore
	Messages store.MessageStore
	Identity *identity.Resolver
	Provider completion.Provider // nil runs in demo mode
	Audit    *ConversationLogger // optional
}

// Service owns every chat operation exposed over HTTP and WebSocket.
type Service struct {
	chats    store.ChatStore
	messages store.MessageStore
	identity *identity.Resolver
	provider completion.Provider
	audit    *ConversationLogger
	opts     Options
	locks    *keyedMutex
}

// NewService creates a chat service.
func NewService(deps Deps, opts Options) *Service {
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = defaultGenerationTimeout
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 200
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = max(1000, opts.DefaultLimit)
	}
	if opts.Window == "" {
		opts.Window = domain.WindowOldest
	}
	if opts.DiagnosticMaxLen <= 0 {
		opts.DiagnosticMaxLen = 300
	}

	s := &Service{
		chats:    deps.Chats,
		messages: deps.Messages,
		identity: deps.Identity,
		provider: deps.Provider,
		audit:    deps.Audit,
		opts:     opts,
	}
	if opts.SerializePerChat {
		s.locks = newKeyedMutex()
	}
	return s
}

// GenerationEnabled reports whether replies come from a real provider.
func (s *Service) GenerationEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the active provider name, or "demo" without one.
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return "demo"
	}
	return s.provider.Name()
}

// ListChats returns the owner's chats, newest first.
func (s *Service) ListChats(ctx context.Context, ownerID string) ([]*domain.Chat, error) {
	owner, err := domain.RequiredText("user_id", ownerID)
	if err != nil {
		return nil, err
	}
	chats, err := s.chats.ListChatsByUser(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// CreateChatInput holds the request fields for a new chat. Optional fields
// follow the blank-is-absent rule.
type CreateChatInput struct {
	Name        string
	UserID      *string
	DisplayName *string
	Email       *string
	Context     *string
}

// CreateChat resolves the owner and creates a chat. It returns the chat and
// the resolved owner ID.
func (s *Service) CreateChat(ctx context.Context, in CreateChatInput) (*domain.Chat, string, error) {
	name, err := domain.RequiredText("nombre_chat", in.Name)
	if err != nil {
		return nil, "", err
	}

	userID, err := s.identity.ResolveOrCreate(ctx,
		domain.OptionalText(in.DisplayName),
		domain.OptionalEmail(in.Email),
		domain.OptionalText(in.UserID),
	)
	if err != nil {
		return nil, "", fmt.Errorf("resolve user: %w", err)
	}

	chat := &domain.Chat{
		UserID:  userID,
		Name:    name,
		Context: domain.OptionalText(in.Context),
	}
	if err := s.chats.CreateChat(ctx, chat); err != nil {
		return nil, "", fmt.Errorf("create chat: %w", err)
	}

	slog.Info("Chat created", "chat_id", chat.ID, "user_id", userID, "request_id", requestID(ctx))
	return chat, userID, nil
}

// RenameChat changes a chat's name.
func (s *Service) RenameChat(ctx context.Context, chatID, newName string) (*domain.Chat, error) {
	id, err := domain.RequiredText("chat_id", chatID)
	if err != nil {
		return nil, err
	}
	name, err := domain.RequiredText("nombre_chat", newName)
	if err != nil {
		return nil, err
	}
	chat, err := s.chats.RenameChat(ctx, id, name)
	if err != nil {
		return nil, fmt.Errorf("rename chat: %w", err)
	}
	return chat, nil
}

// DeleteChat removes a chat together with all of its messages.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	id, err := domain.RequiredText("chat_id", chatID)
	if err != nil {
		return err
	}
	if err := s.chats.DeleteChat(ctx, id); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	slog.Info("Chat deleted", "chat_id", id, "request_id", requestID(ctx))
	return nil
}

// ReadMessages returns a window of a chat's history, oldest first.
// A nil limit uses the configured default; larger limits are clamped.
func (s *Service) ReadMessages(ctx context.Context, chatID string, limit *int) ([]*domain.Message, error) {
	id, err := domain.RequiredText("chat_id", chatID)
	if err != nil {
		return nil, err
	}

	n := s.opts.DefaultLimit
	if limit != nil {
		if *limit < 1 {
			return nil, &domain.ValidationError{Field: "limit", Reason: "debe ser >= 1"}
		}
		n = min(*limit, s.opts.MaxLimit)
	}

	if _, err := s.chats.GetChat(ctx, id); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	msgs, err := s.messages.ListMessages(ctx, id, n, s.opts.Window)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return msgs, nil
}
