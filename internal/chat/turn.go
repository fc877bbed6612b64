package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/lexrelay/internal/completion"
	"github.com/ashureev/lexrelay/internal/domain"
	"github.com/ashureev/lexrelay/internal/shared"
	"github.com/go-chi/chi/v5/middleware"
)

// FallbackPrefix starts every demo-mode reply.
const FallbackPrefix = "(demo) Recibí tu consulta: "

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	Reply    string
	Fallback bool
}

// SubmitTurn records the user's message, generates a reply and records it.
//
// The user message is always persisted before generation is attempted. When
// generation fails no assistant message is written and a *domain.GenerationError
// is returned, leaving the user message in place. Once the user message is
// stored the turn no longer observes ctx cancellation; only the generation
// timeout bounds it.
func (s *Service) SubmitTurn(ctx context.Context, chatID, rawText string) (*TurnResult, error) {
	id, err := domain.RequiredText("chat_id", chatID)
	if err != nil {
		return nil, err
	}
	text, err := domain.RequiredText("message", rawText)
	if err != nil {
		return nil, err
	}

	if s.locks != nil {
		unlock := s.locks.Lock(id)
		defer unlock()
	}

	reqID := requestID(ctx)
	userMsg := &domain.Message{ChatID: id, Content: text, Sender: domain.SenderUser}
	if err := s.messages.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	s.audit.Log(ConversationLogEvent{
		ChatID:     id,
		RequestID:  reqID,
		EventType:  EventUserMessage,
		Sender:     string(domain.SenderUser),
		ContentRaw: text,
	})

	ctx = context.WithoutCancel(ctx)

	if s.provider == nil {
		reply := FallbackPrefix + text
		if err := s.appendAssistant(ctx, id, reply); err != nil {
			return nil, err
		}
		s.audit.Log(ConversationLogEvent{
			ChatID:     id,
			RequestID:  reqID,
			EventType:  EventFallbackReply,
			Sender:     string(domain.SenderAssistant),
			ContentRaw: reply,
		})
		return &TurnResult{Reply: reply, Fallback: true}, nil
	}

	start := time.Now()
	reply, err := s.generate(ctx, text)
	elapsed := time.Since(start)
	if err != nil {
		detail := shared.Truncate(err.Error(), s.opts.DiagnosticMaxLen)
		slog.Error("Generation failed",
			"chat_id", id,
			"provider", s.provider.Name(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", reqID,
			"error", err)
		s.audit.Log(ConversationLogEvent{
			ChatID:     id,
			RequestID:  reqID,
			EventType:  EventGenerationFailed,
			Provider:   s.provider.Name(),
			DurationMS: elapsed.Milliseconds(),
			Error:      detail,
		})
		return nil, &domain.GenerationError{Detail: detail, Err: err}
	}

	if err := s.appendAssistant(ctx, id, reply); err != nil {
		return nil, err
	}
	s.audit.Log(ConversationLogEvent{
		ChatID:     id,
		RequestID:  reqID,
		EventType:  EventAssistantReply,
		Sender:     string(domain.SenderAssistant),
		Provider:   s.provider.Name(),
		DurationMS: elapsed.Milliseconds(),
		ContentRaw: reply,
	})
	slog.Info("Turn completed",
		"chat_id", id,
		"provider", s.provider.Name(),
		"duration_ms", elapsed.Milliseconds(),
		"request_id", reqID)

	return &TurnResult{Reply: reply}, nil
}

// generate makes exactly one provider call bounded by the generation timeout.
func (s *Service) generate(ctx context.Context, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
	defer cancel()

	reply, err := s.provider.Complete(callCtx, completion.PromptFor(s.opts.SystemPrompt, text))
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %s: %w", s.opts.GenerationTimeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", completion.ErrEmptyCompletion
	}
	return reply, nil
}

func (s *Service) appendAssistant(ctx context.Context, chatID, reply string) error {
	msg := &domain.Message{ChatID: chatID, Content: reply, Sender: domain.SenderAssistant}
	if err := s.messages.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("append assistant message: %w", err)
	}
	return nil
}

func requestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}
