package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/downloader"
	"github.com/carlbunn/musicbox/handlers"
	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/middleware"
	"github.com/carlbunn/musicbox/player"
	"github.com/carlbunn/musicbox/websocket"
)

// Server is the HTTP control surface of the appliance.
type Server struct {
	httpServer *http.Server
}

// New wires routes, middleware and handlers. The downloads queue may
// be nil when downloads are disabled; the routes then answer 503.
func New(cfg *config.Config, store *catalog.Store, controller *player.Controller, queue *downloader.Queue, hub websocket.Hub) *Server {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	playerHandler := handlers.NewPlayerHandler(controller, store)
	catalogHandler := handlers.NewCatalogHandler(store)
	downloadHandler := handlers.NewDownloadHandler(queue)
	healthHandler := handlers.NewHealthHandler(store)
	wsHandler := handlers.NewWSHandler(hub)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Logging())

	r.GET("/health", healthHandler.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/status", healthHandler.APIStatus)

		playerGroup := api.Group("/player")
		{
			playerGroup.GET("/status", playerHandler.Status)
			playerGroup.GET("/display", playerHandler.Display)
			playerGroup.POST("/play", playerHandler.Play)
			playerGroup.POST("/pause", playerHandler.Pause)
			playerGroup.POST("/resume", playerHandler.Resume)
			playerGroup.POST("/toggle", playerHandler.Toggle)
			playerGroup.POST("/stop", playerHandler.Stop)
			playerGroup.POST("/seek", playerHandler.Seek)
			playerGroup.POST("/skip", playerHandler.Skip)
			playerGroup.POST("/volume", playerHandler.Volume)
		}

		tracksGroup := api.Group("/tracks")
		{
			tracksGroup.GET("", catalogHandler.ListTracks)
			tracksGroup.GET("/unmapped", catalogHandler.Unmapped)
			tracksGroup.POST("/scan", catalogHandler.Rescan)
		}

		mappingsGroup := api.Group("/mappings")
		{
			mappingsGroup.POST("", catalogHandler.AddMapping)
			mappingsGroup.DELETE("/:tagId", catalogHandler.RemoveMapping)
			mappingsGroup.GET("/validate", catalogHandler.Validate)
		}

		downloadsGroup := api.Group("/downloads")
		{
			downloadsGroup.POST("", downloadHandler.Queue)
			downloadsGroup.GET("", downloadHandler.List)
			downloadsGroup.GET("/:jobId", downloadHandler.Get)
			downloadsGroup.DELETE("/:jobId", downloadHandler.Cancel)
		}

		api.GET("/ws", wsHandler.Subscribe)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
			Handler: r,
		},
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
