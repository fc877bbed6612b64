package api

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// socketCloser is the part of *websocket.Conn the registry needs.
type socketCloser interface {
	Close(code websocket.StatusCode, reason string) error
}

// SocketRegistry tracks open turn sockets per chat so they can be closed
// when the chat is deleted.
type SocketRegistry struct {
	mu     sync.RWMutex
	active map[string]map[string]socketCloser
}

// NewSocketRegistry creates an empty registry.
func NewSocketRegistry() *SocketRegistry {
	return &SocketRegistry{
		active: make(map[string]map[string]socketCloser),
	}
}

// Register records an open socket for chatID and returns its connection ID.
func (m *SocketRegistry) Register(chatID string, conn socketCloser) string {
	connID := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[chatID]; !exists {
		m.active[chatID] = make(map[string]socketCloser)
	}
	m.active[chatID][connID] = conn
	slog.Debug("Turn socket registered", "chat_id", chatID, "conn_id", connID)
	return connID
}

// Unregister forgets a socket. Unknown IDs are ignored.
func (m *SocketRegistry) Unregister(chatID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conns, ok := m.active[chatID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.active, chatID)
		}
	}
}

// Count returns the number of open sockets for chatID.
func (m *SocketRegistry) Count(chatID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[chatID])
}

// CloseChat starts closing every socket bound to chatID and returns how many
// there were. It does not wait for the close handshakes.
func (m *SocketRegistry) CloseChat(chatID string) int {
	m.mu.Lock()
	conns := m.active[chatID]
	delete(m.active, chatID)
	m.mu.Unlock()

	for connID, conn := range conns {
		go func(connID string, conn socketCloser) {
			if err := conn.Close(websocket.StatusNormalClosure, "chat deleted"); err != nil {
				slog.Debug("Failed to close turn socket", "chat_id", chatID, "conn_id", connID, "error", err)
			}
		}(connID, conn)
	}
	if len(conns) > 0 {
		slog.Info("Closing turn sockets for deleted chat", "chat_id", chatID, "count", len(conns))
	}
	return len(conns)
}
