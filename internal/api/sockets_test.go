package api

import (
	"testing"
	"time"

	"github.com/coder/websocket"
)

// fakeSocket reports each Close on closed and blocks until release is closed.
type fakeSocket struct {
	closed  chan websocket.StatusCode
	release chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		closed:  make(chan websocket.StatusCode, 1),
		release: make(chan struct{}),
	}
}

func (f *fakeSocket) Close(code websocket.StatusCode, _ string) error {
	f.closed <- code
	<-f.release
	return nil
}

func waitClosed(t *testing.T, f *fakeSocket) websocket.StatusCode {
	t.Helper()
	select {
	case code := <-f.closed:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for socket close")
		return 0
	}
}

func TestSocketRegistryRegisterUnregister(t *testing.T) {
	reg := NewSocketRegistry()
	a, b := newFakeSocket(), newFakeSocket()

	idA := reg.Register("chat-1", a)
	idB := reg.Register("chat-1", b)
	if idA == idB {
		t.Fatal("expected distinct connection ids")
	}
	if got := reg.Count("chat-1"); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	reg.Unregister("chat-1", idA)
	reg.Unregister("chat-1", "stale")
	if got := reg.Count("chat-1"); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}

	reg.Unregister("chat-1", idB)
	if got := reg.Count("chat-1"); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}

func TestSocketRegistryCloseChat(t *testing.T) {
	reg := NewSocketRegistry()
	a, b, other := newFakeSocket(), newFakeSocket(), newFakeSocket()
	defer close(a.release)
	defer close(b.release)
	defer close(other.release)

	reg.Register("chat-1", a)
	reg.Register("chat-1", b)
	reg.Register("chat-2", other)

	if n := reg.CloseChat("chat-1"); n != 2 {
		t.Fatalf("CloseChat = %d, want 2", n)
	}
	if code := waitClosed(t, a); code != websocket.StatusNormalClosure {
		t.Errorf("close code = %v, want normal closure", code)
	}
	waitClosed(t, b)

	select {
	case <-other.closed:
		t.Fatal("chat-2 socket must stay open")
	default:
	}
	if got := reg.Count("chat-1"); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
	if n := reg.CloseChat("chat-1"); n != 0 {
		t.Fatalf("second CloseChat = %d, want 0", n)
	}
}

func TestSocketRegistryCloseChatDoesNotWaitForHandshake(t *testing.T) {
	reg := NewSocketRegistry()
	stuck := newFakeSocket()
	defer close(stuck.release)
	reg.Register("chat-1", stuck)

	done := make(chan int, 1)
	go func() { done <- reg.CloseChat("chat-1") }()

	select {
	case n := <-done:
		if n != 1 {
			t.Fatalf("CloseChat = %d, want 1", n)
		}
	case <-time.After(time.Second):
		t.Fatal("CloseChat blocked on a socket that never finishes closing")
	}
	waitClosed(t, stuck)
}
