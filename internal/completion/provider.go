// Package completion isolates LLM providers behind one request/response interface.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/lexrelay/internal/config"
)

// ErrEmptyCompletion is returned when a provider answers without usable text.
var ErrEmptyCompletion = errors.New("provider returned empty completion")

// Role tags a prompt turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged piece of a prompt.
type Turn struct {
	Role    Role
	Content string
}

// Provider sends role-tagged turns to a model and returns its text reply.
// Implementations make exactly one attempt and never retry.
type Provider interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
	Name() string
}

// New builds the configured provider. It returns a nil Provider when
// generation is disabled or credentials are missing; callers treat that as
// demo mode.
func New(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	if !cfg.GenerationEnabled() {
		slog.Info("Completion provider disabled, replies will use demo fallback",
			"enabled", cfg.Enabled, "provider", cfg.Provider)
		return nil, nil
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIURL,
			Model:   cfg.OpenAIModel,
		}), nil
	case config.ProviderGemini:
		p, err := NewGeminiProvider(ctx, GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

func checkReply(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
