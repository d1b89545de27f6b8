/**
 * Verifier Worker - Main Entry Point
 *
 * Go worker for offline document verification against enrolled reference
 * templates.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed frame queue
 * - Verification pipeline: quality, rectification, template matching,
 *   Tesseract OCR, tamper analysis, scoring
 * - BoltDB (default) or PostgreSQL persistence for sessions and templates
 * - Redis pub/sub progress events for frontend streaming
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ncsverify/verifier-worker/internal/config"
	"github.com/ncsverify/verifier-worker/internal/pipeline"
	"github.com/ncsverify/verifier-worker/internal/queue"
	"github.com/ncsverify/verifier-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Verifier worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Storage=%s, Workers=%d",
		cfg.RedisURL, cfg.StorageDriver, cfg.WorkerConcurrency)

	// Initialize storage
	var references pipeline.ReferenceStore
	var sessions pipeline.SessionStore
	var closeStorage func() error
	switch cfg.StorageDriver {
	case "postgres":
		log.Printf("Connecting to PostgreSQL...")
		store, err := storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL storage: %v", err)
		}
		references = store.References()
		sessions = store.Sessions()
		closeStorage = store.Close
	default:
		log.Printf("Opening BoltDB at %s...", cfg.BoltPath)
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		store, err := storage.NewBoltStore(cfg.BoltPath)
		if err != nil {
			log.Fatalf("Failed to initialize BoltDB storage: %v", err)
		}
		references = store.References()
		sessions = store.Sessions()
		closeStorage = store.Close
	}
	defer closeStorage()
	log.Printf("Storage initialized (%s)", cfg.StorageDriver)

	// Initialize progress publisher
	publisher, err := queue.NewRedisPublisher(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to initialize progress publisher: %v", err)
	}
	defer publisher.Close()

	// Initialize the document analyzer
	thresholds := pipeline.Thresholds{
		BlurMin:            cfg.BlurThreshold,
		GlareMax:           cfg.GlareThreshold,
		RectifyOutputWidth: cfg.RectifyOutputWidth,
		MatchWidth:         cfg.MatchWidth,
	}
	analyzer, err := pipeline.NewDocumentAnalyzer(&pipeline.AnalyzerConfig{
		References: references,
		Sessions:   sessions,
		Engine:     pipeline.NewTesseractEngine(cfg.TesseractLang),
		Thresholds: thresholds,
		Progress:   publisher,
	})
	if err != nil {
		log.Fatalf("Failed to initialize document analyzer: %v", err)
	}
	log.Printf("Document analyzer initialized (Tesseract lang=%s)", cfg.TesseractLang)

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Analyzer:          analyzer,
		Sessions:          sessions,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("Verifier worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Storage: %s", cfg.StorageDriver)
	log.Printf("===========================================")
	log.Printf("Waiting for frames...")

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := consumer.Stop(ctx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	if err := closeStorage(); err != nil {
		log.Printf("Error closing storage: %v", err)
	}

	log.Printf("Shutdown complete")
}
