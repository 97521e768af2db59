package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gymstack/checkin-server/internal/auth"
	"github.com/gymstack/checkin-server/internal/config"
	"github.com/gymstack/checkin-server/internal/core"
	"github.com/gymstack/checkin-server/internal/store"
)

// NewServer builds the HTTP server: REST API plus the realtime check-in
// channel at /ws/checkins. The websocket endpoint is mounted on a plain mux
// because the hijack needed by the upgrade does not work through gin's
// response writer.
func NewServer(registry *core.Registry, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	api := NewAPIHandlers(authService, st, logger)
	router.POST("/api/register", api.Register)
	router.POST("/api/login", api.Login)

	authorized := router.Group("/api")
	authorized.Use(AuthMiddleware(authService, logger))
	{
		authorized.POST("/members", api.CreateMember)
		authorized.GET("/members", api.ListMembers)
		authorized.GET("/members/:id", api.GetMember)
		authorized.GET("/checkins", api.ListCheckIns)
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws/checkins", NewWSHandler(registry, authService, st, logger))
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
