package main

import (
	"context"
	"log"
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
	"contract-qa-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName+"-worker", cfg.OTLPEndpoint)
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

	geminiClient, err := ai.NewGeminiClient(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	gateway := rag.NewGateway(ai.NewEmbedder(geminiClient),
		rag.WithConcurrency(cfg.EmbedConcurrency),
		rag.WithMetrics(metrics),
	)
	processor := queue.NewTaskProcessor(db, rag.NewIndexer(gateway, cfg.MaxChunkSize), metrics)

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				"default":           3,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskProcessDocument, processor.ProcessDocument)

	// Documents left in processing by a crashed worker are failed periodically
	sweeper := services.NewSweeper(db, cfg.StaleProcessingAfter)
	if err := sweeper.Start(cfg.SweepInterval); err != nil {
		log.Fatal("Failed to start sweeper:", err)
	}
	defer sweeper.Stop()

	logger.Info("Starting Asynq worker",
		"concurrency", cfg.WorkerConcurrency,
		"sweep_interval", cfg.SweepInterval.String(),
	)

	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
	server.Shutdown()
}
