package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/calder-vision/framewatch/server/cache"
	"github.com/calder-vision/framewatch/server/config"
	"github.com/calder-vision/framewatch/server/handlers"
	"github.com/calder-vision/framewatch/server/middleware"
	"github.com/calder-vision/framewatch/server/processor"
	"github.com/calder-vision/framewatch/server/video"
)

type Server struct {
	router         *gin.Engine
	logger         *zap.Logger
	frameProcessor *processor.FrameProcessor
	rateLimiter    *middleware.RateLimiter
	config         *config.Config
}

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Logging.Format == "json" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The processor owns the cache and closes it during shutdown.
	if err := server.frameProcessor.Shutdown(); err != nil {
		logger.Error("Failed to shutdown frame processor", zap.Error(err))
	}
	if server.rateLimiter != nil {
		server.rateLimiter.Shutdown()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	cacheInstance := cache.NewMemoryCache(1000, 5*time.Minute, logger)

	frameExtractor, err := video.NewFrameExtractor(cfg.Video.TempDir, cfg.Video.FrameRate, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame extractor: %w", err)
	}

	frameProcessor := processor.NewFrameProcessor(processor.Config{
		MaxQueueSize:      cfg.Processor.MaxQueueSize,
		MaxWorkers:        cfg.Processor.MaxWorkers,
		ProcessingTimeout: cfg.Processor.ProcessingTimeout,
		VideoTempDir:      cfg.Video.TempDir,
		Detection: processor.DetectionDefaults{
			Threshold:       float32(cfg.Detection.Threshold),
			MinAreaFraction: float32(cfg.Detection.MinAreaFraction),
			BlurKernelSize:  uint32(cfg.Detection.BlurKernelSize),
		},
	}, frameExtractor, cacheInstance, logger)

	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.RateLimitBurst,
		logger,
	)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.AuthSecret, logger)

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.Security.MaxRequestSize))

	wsHandler := handlers.NewWebSocketHandler(frameProcessor, logger)
	frameHandler := handlers.NewFrameHandler(frameProcessor, cfg.Video.MaxUploadSize, logger)
	statsHandler := handlers.NewStatsHandler(frameProcessor, logger)

	setupRoutes(router, wsHandler, frameHandler, statsHandler, authMiddleware, rateLimiter)

	return &Server{
		router:         router,
		logger:         logger,
		frameProcessor: frameProcessor,
		rateLimiter:    rateLimiter,
		config:         cfg,
	}, nil
}

func setupRoutes(router *gin.Engine, wsHandler *handlers.WebSocketHandler, frameHandler *handlers.FrameHandler, statsHandler *handlers.StatsHandler, auth *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter) {
	router.GET("/health", handlers.HealthCheck())

	// WebSocket endpoint (rate limited)
	router.GET("/ws", rateLimiter.RateLimit(), wsHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	{
		api.GET("/health", handlers.HealthCheck())

		protected := api.Group("/")
		protected.Use(rateLimiter.RateLimit())
		{
			protected.POST("/analyze-frame", middleware.RequireJSON(), frameHandler.AnalyzeFrame)
			protected.GET("/last-result", frameHandler.LastResult)
			protected.POST("/reset-detector", frameHandler.ResetDetector)
			protected.GET("/motion-history", frameHandler.MotionHistory)

			protected.GET("/stats", statsHandler.GetStats)

			protected.POST("/upload-video", frameHandler.UploadVideo)
			protected.GET("/video-job/:job_id", frameHandler.VideoJobStatus)
		}

		// Admin endpoints (require authentication)
		admin := api.Group("/admin")
		admin.Use(auth.RequireAuth())
		admin.Use(auth.RequireRole("admin"))
		{
			admin.GET("/stats", statsHandler.GetStats)
		}
	}
}
