package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrSessionClosed = errors.New("session not active")

const writeWait = 10 * time.Second

// Session is one browser connection. Writes are serialized because the
// reply pipeline sends audio and strokes from different goroutines.
type Session struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	lastActive time.Time
	isActive   bool
	mutex      sync.RWMutex
	writeMu    sync.Mutex
}

func NewSession(id string, conn *websocket.Conn) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Conn:        conn,
		ConnectedAt: now,
		lastActive:  now,
		isActive:    true,
	}
}

// Send writes one JSON message to the client.
func (s *Session) Send(msg any) error {
	if !s.IsAlive() {
		return ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.Conn.WriteJSON(msg)
}

func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) IsAlive() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isActive
}

// IsExpired checks if the session has expired based on inactivity
func (s *Session) IsExpired(timeout time.Duration) bool {
	return time.Since(s.LastActive()) > timeout
}

// Close marks the session inactive and closes the socket.
func (s *Session) Close() error {
	s.mutex.Lock()
	if !s.isActive {
		s.mutex.Unlock()
		return nil
	}
	s.isActive = false
	s.mutex.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.Conn.Close()
}
