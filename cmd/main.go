package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contract-qa-platform/internal/ai"
	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/queue"
	"contract-qa-platform/internal/rag"
	"contract-qa-platform/internal/store"
	"contract-qa-platform/internal/telemetry"
	"contract-qa-platform/middleware"
	"contract-qa-platform/routes"
	"contract-qa-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("Failed to initialize tracing:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	db := store.New(mongoClient.Database(cfg.DBName))
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx); err != nil {
		log.Fatal("Failed to create indexes:", err)
	}
	cancelIndex()

	// Redis backs both rate limiting and the task queue
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	geminiClient, err := ai.NewGeminiClient(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	gateway := rag.NewGateway(ai.NewEmbedder(geminiClient),
		rag.WithConcurrency(cfg.EmbedConcurrency),
		rag.WithMetrics(metrics),
	)
	ragService := rag.NewService(
		rag.NewRetriever(db, gateway),
		rag.NewSynthesizer(geminiClient, metrics),
		cfg.TopK,
	)
	extractor := services.NewExtractor(db, db, geminiClient, cfg.GeminiModel)
	auditor := services.NewAuditor(db, db, geminiClient, cfg.GeminiModel)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize*int64(cfg.MaxUploadFiles) + 1<<20))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg)
	if !authMiddleware.Enabled() {
		logger.Warn("JWT_SECRET not set, API endpoints are unauthenticated")
	}

	routes.SetupDocumentRoutes(router,
		routes.NewDocumentHandler(cfg, db, queue.NewEnqueuer(asynqClient), extractor, auditor),
		authMiddleware.RequireAuth(),
	)
	routes.SetupAskRoutes(router, routes.NewAskHandler(ragService), authMiddleware.RequireAuth())

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
