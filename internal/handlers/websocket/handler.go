package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/xtutor/internal/domains/tutor"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
)

const (
	// board snapshots arrive as base64 PNGs inside one text frame
	maxMessageBytes = 16 << 20
	sessionTimeout  = 30 * time.Minute
)

// WebSocketHandler upgrades browser connections and hands each one to its
// own tutor.
type WebSocketHandler struct {
	logger            *Logger.Logger
	deps              tutor.Deps
	tutorConfig       tutor.Config
	metrics           *metrics.Metrics
	connectionManager *ConnectionManager
	upgrader          websocket.Upgrader
}

func NewWebSocketHandler(
	logger *Logger.Logger,
	deps tutor.Deps,
	tutorConfig tutor.Config,
	m *metrics.Metrics,
	allowedOrigin string,
) *WebSocketHandler {
	return &WebSocketHandler{
		logger:            logger,
		deps:              deps,
		tutorConfig:       tutorConfig,
		metrics:           m,
		connectionManager: NewConnectionManager(logger, m, sessionTimeout),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigin),
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// originChecker allows everything when no frontend origin is configured.
func originChecker(allowed string) func(r *http.Request) bool {
	allowed = strings.TrimRight(allowed, "/")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowed == "" || allowed == "*" || origin == "" {
			return true
		}
		return strings.TrimRight(origin, "/") == allowed
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router gin.IRouter) {
	ws := router.Group("/ws")
	{
		ws.GET("/:session_id", h.HandleTutorWebSocket)
	}
	router.GET("/sessions/stats", h.HandleStats)
}

func (h *WebSocketHandler) HandleTutorWebSocket(c *gin.Context) {
	id := strings.TrimSpace(c.Param("session_id"))
	if id == "" {
		id = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	session := NewSession(id, conn)
	entry := &Entry{
		Conn:  session,
		Tutor: tutor.New(id, session, h.deps, h.tutorConfig, h.logger, h.metrics),
	}
	h.connectionManager.Register(entry)
	defer h.connectionManager.Unregister(entry)

	if err := entry.Tutor.Connected(); err != nil {
		h.logger.Warnf("greeting session %s: %v", id, err)
		return
	}
	h.handleConnection(entry)
}

// handleConnection reads client frames until the socket closes.
func (h *WebSocketHandler) handleConnection(e *Entry) {
	for {
		messageType, data, err := e.Conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("WebSocket read error for session %s: %v", e.Conn.ID, err)
			} else {
				h.logger.Infof("WebSocket connection closed for session %s", e.Conn.ID)
			}
			return
		}
		e.Conn.Touch()

		switch messageType {
		case websocket.TextMessage:
			e.Tutor.HandleRaw(data)
		case websocket.BinaryMessage:
			// raw microphone frames, same as audio_data without base64
			e.Tutor.PushAudio(data)
		}
	}
}

// HandleStats provides connection statistics
func (h *WebSocketHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"data":   h.connectionManager.GetStats(),
	})
}

func (h *WebSocketHandler) ActiveSessions() int {
	return h.connectionManager.Count()
}

// Close shuts down the WebSocket handler
func (h *WebSocketHandler) Close() error {
	return h.connectionManager.Close()
}
