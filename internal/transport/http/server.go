package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/metrics"
)

// NewServer builds an HTTP server with the board routes. The /metrics
// route is mounted only when m is non-nil.
func NewServer(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger, m *metrics.Metrics) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	sessions := NewSessionHandlers(hub, logger)
	api := router.Group("/api")
	api.GET("/session", sessions.GetSession)

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// /ws hijacks the connection and must not pass through gin's writer.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
