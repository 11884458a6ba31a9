package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xpanvictor/xtutor/internal/config"
	"github.com/xpanvictor/xtutor/internal/handlers"
	"github.com/xpanvictor/xtutor/internal/handlers/websocket"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
)

type Dependencies struct {
	Config    *config.Settings
	Logger    *Logger.Logger
	Metrics   *metrics.Metrics
	WSHandler *websocket.WebSocketHandler
}

func NewServerDependencies(
	cfg *config.Settings,
	logger *Logger.Logger,
	m *metrics.Metrics,
	ws *websocket.WebSocketHandler,
) Dependencies {
	return Dependencies{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		WSHandler: ws,
	}
}

func InitializeRoutes(r *gin.Engine, dep Dependencies) {
	r.Use(handlers.ErrorHandlerMiddleware(dep.Logger))
	r.Use(handlers.CORSMiddleware(dep.Config.Server.FrontendURL))
	if dep.Config.Debug {
		r.Use(handlers.RequestLoggerMiddleware(dep.Logger))
	}

	r.GET("/", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"active_sessions": dep.WSHandler.ActiveSessions(),
		})
	})
	r.GET("/session/new", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"session_id": uuid.NewString()})
	})
	r.GET("/metrics", gin.WrapH(dep.Metrics.Handler()))

	dep.WSHandler.RegisterRoutes(r)
}
