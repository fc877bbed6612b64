package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/lexrelay/internal/config"
)

// Conversation log event types.
const (
	EventUserMessage      = "turn_user_message"
	EventAssistantReply   = "turn_assistant_reply"
	EventFallbackReply    = "turn_fallback_reply"
	EventGenerationFailed = "turn_generation_failed"
)

// ConversationLogEvent is one NDJSON line of the per-chat audit trail.
type ConversationLogEvent struct {
	Timestamp  time.Time `json:"ts"`
	ChatID     string    `json:"chat_id"`
	RequestID  string    `json:"request_id,omitempty"`
	EventType  string    `json:"event_type"`
	Sender     string    `json:"sender,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Content    string    `json:"content,omitempty"`
	ContentRaw string    `json:"content_raw,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ConversationLogger appends events to <dir>/<chat_id>.ndjson from a single
// background writer. A nil or disabled logger drops every event.
type ConversationLogger struct {
	dir    string
	logger *slog.Logger
	queue  chan ConversationLogEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewConversationLogger starts the writer goroutine when cfg.Enabled is set.
func NewConversationLogger(cfg config.ConversationLogConfig, logger *slog.Logger) (*ConversationLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return &ConversationLogger{logger: logger, closed: true}, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 1000
	}
	l := &ConversationLogger{
		dir:    cfg.Dir,
		logger: logger,
		queue:  make(chan ConversationLogEvent, size),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event without blocking. Events are dropped when the queue is full.
func (l *ConversationLogger) Log(event ConversationLogEvent) {
	if l == nil {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Content == "" && event.ContentRaw != "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	select {
	case l.queue <- event:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"chat_id", event.ChatID, "event_type", event.EventType)
	}
}

// Close flushes queued events and stops the writer.
func (l *ConversationLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *ConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("failed to write conversation log", "chat_id", event.ChatID, "error", err)
		}
	}
}

func (l *ConversationLogger) write(event ConversationLogEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	path := filepath.Join(l.dir, safeFileName(event.ChatID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// cleanForReadability strips terminal escapes and control characters.
func cleanForReadability(raw string) string {
	s := ansiPattern.ReplaceAllString(raw, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func safeFileName(id string) string {
	if id == "" {
		return "unknown"
	}
	return unsafeFileChars.ReplaceAllString(id, "_")
}
