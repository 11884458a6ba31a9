package websocket

import (
	"sync"
	"time"

	"github.com/xpanvictor/xtutor/internal/domains/tutor"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
)

// Entry pairs a connection with the tutor serving it.
type Entry struct {
	Conn  *Session
	Tutor *tutor.Tutor
}

func (e *Entry) close(logger *Logger.Logger) {
	e.Tutor.Close()
	if err := e.Conn.Close(); err != nil {
		logger.Debugf("closing connection %s: %v", e.Conn.ID, err)
	}
}

// ConnectionManager is the registry of live sessions, keyed by session id.
type ConnectionManager struct {
	logger         *Logger.Logger
	metrics        *metrics.Metrics
	sessions       map[string]*Entry
	mutex          sync.RWMutex
	cleanupTicker  *time.Ticker
	stopCleanup    chan struct{}
	stopOnce       sync.Once
	sessionTimeout time.Duration
}

func NewConnectionManager(logger *Logger.Logger, m *metrics.Metrics, sessionTimeout time.Duration) *ConnectionManager {
	cm := &ConnectionManager{
		logger:         logger,
		metrics:        m,
		sessions:       make(map[string]*Entry),
		stopCleanup:    make(chan struct{}),
		sessionTimeout: sessionTimeout,
	}
	cm.startCleanupRoutine()
	return cm
}

// Register adds a session. A reconnect under the same id replaces (and
// closes) the previous connection.
func (cm *ConnectionManager) Register(e *Entry) {
	cm.mutex.Lock()
	old := cm.sessions[e.Conn.ID]
	cm.sessions[e.Conn.ID] = e
	cm.mutex.Unlock()

	cm.metrics.RecordSessionOpened()
	cm.logger.Infof("registered session %s", e.Conn.ID)
	if old != nil {
		cm.logger.Infof("session %s reconnected, closing previous connection", e.Conn.ID)
		old.close(cm.logger)
		cm.metrics.RecordSessionClosed()
	}
}

// Unregister removes e if it is still the registered entry for its id.
func (cm *ConnectionManager) Unregister(e *Entry) {
	cm.mutex.Lock()
	current, ok := cm.sessions[e.Conn.ID]
	owned := ok && current == e
	if owned {
		delete(cm.sessions, e.Conn.ID)
	}
	cm.mutex.Unlock()

	if !owned {
		return
	}
	cm.logger.Infof("unregistering session %s", e.Conn.ID)
	e.close(cm.logger)
	cm.metrics.RecordSessionClosed()
}

func (cm *ConnectionManager) Get(id string) (*Entry, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	e, ok := cm.sessions[id]
	return e, ok
}

func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.sessions)
}

func (cm *ConnectionManager) startCleanupRoutine() {
	cm.cleanupTicker = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-cm.cleanupTicker.C:
				cm.cleanupExpiredSessions()
			case <-cm.stopCleanup:
				cm.cleanupTicker.Stop()
				return
			}
		}
	}()
}

// cleanupExpiredSessions drops connections that have gone quiet.
func (cm *ConnectionManager) cleanupExpiredSessions() {
	cm.mutex.RLock()
	var expired []*Entry
	for _, e := range cm.sessions {
		if e.Conn.IsExpired(cm.sessionTimeout) {
			expired = append(expired, e)
		}
	}
	cm.mutex.RUnlock()

	for _, e := range expired {
		cm.logger.Infof("cleaning up idle session %s", e.Conn.ID)
		cm.Unregister(e)
	}
}

// Close shuts every session down.
func (cm *ConnectionManager) Close() error {
	cm.stopOnce.Do(func() { close(cm.stopCleanup) })

	cm.mutex.Lock()
	entries := make([]*Entry, 0, len(cm.sessions))
	for _, e := range cm.sessions {
		entries = append(entries, e)
	}
	cm.sessions = make(map[string]*Entry)
	cm.mutex.Unlock()

	for _, e := range entries {
		e.close(cm.logger)
		cm.metrics.RecordSessionClosed()
	}
	cm.logger.Infof("connection manager closed")
	return nil
}

// GetStats returns connection manager statistics
func (cm *ConnectionManager) GetStats() map[string]any {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	sessions := make([]map[string]any, 0, len(cm.sessions))
	for id, e := range cm.sessions {
		sessions = append(sessions, map[string]any{
			"session_id":   id,
			"connected_at": e.Conn.ConnectedAt,
			"last_active":  e.Conn.LastActive(),
			"tutor_state":  e.Tutor.Session().Mode(),
		})
	}
	return map[string]any{
		"active_sessions": len(cm.sessions),
		"session_timeout": cm.sessionTimeout.String(),
		"sessions":        sessions,
	}
}
