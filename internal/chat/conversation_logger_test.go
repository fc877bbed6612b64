package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/lexrelay/internal/config"
	"github.com/ashureev/lexrelay/internal/identity"
	"github.com/ashureev/lexrelay/internal/store"
)

func TestConversationLoggerWritesPerChatNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(config.ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(ConversationLogEvent{
		ChatID:     "chat-1",
		EventType:  EventUserMessage,
		Sender:     "user",
		ContentRaw: "¿quién hereda?\x07",
	})

	path := filepath.Join(dir, "chat-1.ndjson")
	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.ContentRaw != "¿quién hereda?\x07" {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content != "¿quién hereda?" {
		t.Fatalf("expected cleaned content, got %q", got.Content)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m plain"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if !strings.Contains(clean, "error plain") {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func TestConversationLoggerDisabledAndNil(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "never")
	logger, err := NewConversationLogger(config.ConversationLogConfig{Enabled: false, Dir: dir}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{ChatID: "c", EventType: EventUserMessage})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("disabled logger must not create %s", dir)
	}

	var nilLogger *ConversationLogger
	nilLogger.Log(ConversationLogEvent{ChatID: "c"})
	if err := nilLogger.Close(); err != nil {
		t.Fatalf("nil Close failed: %v", err)
	}
}

func TestConversationLoggerCloseFlushesAndIgnoresLateEvents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(config.ConversationLogConfig{Enabled: true, Dir: dir, QueueSize: 8}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	for range 3 {
		logger.Log(ConversationLogEvent{ChatID: "../escape", EventType: EventUserMessage})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(ConversationLogEvent{ChatID: "../escape", EventType: EventUserMessage})
	_ = logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "___escape.ndjson"))
	if err != nil {
		t.Fatalf("expected sanitized log file: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 3 {
		t.Fatalf("expected 3 lines, got %d", n)
	}
}

func TestSubmitTurnWritesAuditTrail(t *testing.T) {
	t.Parallel()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = repo.Close() }()

	dir := t.TempDir()
	audit, err := NewConversationLogger(config.ConversationLogConfig{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	svc := NewService(Deps{
		Chats:    repo,
		Messages: repo,
		Identity: identity.NewResolver(repo),
		Audit:    audit,
	}, Options{})

	ctx := context.Background()
	chat, _, err := svc.CreateChat(ctx, CreateChatInput{Name: "Herencia"})
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if _, err := svc.SubmitTurn(ctx, chat.ID, "hola"); err != nil {
		t.Fatalf("SubmitTurn failed: %v", err)
	}
	if err := audit.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, chat.ID+".ndjson"))
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(lines))
	}
	var first, second ConversationLogEvent
	_ = json.Unmarshal([]byte(lines[0]), &first)
	_ = json.Unmarshal([]byte(lines[1]), &second)
	if first.EventType != EventUserMessage || second.EventType != EventFallbackReply {
		t.Fatalf("unexpected event order: %q, %q", first.EventType, second.EventType)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
