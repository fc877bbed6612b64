package domain

import (
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	// SenderUser marks a turn typed by the user.
	SenderUser Sender = "user"
	// SenderAssistant marks a generated (or demo fallback) reply.
	SenderAssistant Sender = "assistant"
)

// Valid reports whether s is one of the two known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// Message is one immutable turn of a chat.
// ID, Seq and SentAt are assigned by the store on append.
type Message struct {
	ID      string    `json:"id"`
	ChatID  string    `json:"chat_id"`
	Content string    `json:"contenido"`
	Sender  Sender    `json:"sender"`
	SentAt  time.Time `json:"fecha_envio"`
	Seq     int64     `json:"-"`
}

// ReadWindow selects which messages a bounded read keeps.
type ReadWindow string

const (
	// WindowOldest keeps the first N messages of the chat.
	WindowOldest ReadWindow = "oldest"
	// WindowNewest keeps the last N messages, still returned oldest-first.
	WindowNewest ReadWindow = "newest"
)

// ParseReadWindow converts a configuration value into a ReadWindow.
func ParseReadWindow(s string) (ReadWindow, bool) {
	switch ReadWindow(s) {
	case WindowOldest, WindowNewest:
		return ReadWindow(s), true
	default:
		return "", false
	}
}
