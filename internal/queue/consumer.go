/**
 * Queue consumer for the verifier worker.
 *
 * Consumes frame analysis tasks from the Redis queue via Asynq and hands
 * them to the document analyzer. Capture problems the user can fix by
 * retaking the photo are not retried; environment faults are, with
 * exponential backoff.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ncsverify/verifier-worker/internal/config"
	"github.com/ncsverify/verifier-worker/internal/errors"
	"github.com/ncsverify/verifier-worker/internal/pipeline"
)

// TaskTypeAnalyzeFrame is the task type for a submitted document frame.
const TaskTypeAnalyzeFrame = "frame:analyze"

// FramePayload is the task payload for a frame analysis task. ImageData is
// base64-encoded in the JSON wire form.
type FramePayload struct {
	SessionID string `json:"sessionId"`
	DocType   string `json:"docType,omitempty"`
	ImageData []byte `json:"imageData"`
}

// FrameAnalyzer runs the verification pipeline for one frame.
type FrameAnalyzer interface {
	AnalyzeFrame(ctx context.Context, sessionID, docType string, imageData []byte) (*pipeline.AnalysisResult, error)
}

// Consumer handles frame task consumption from the Redis queue.
type Consumer struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	analyzer FrameAnalyzer
	sessions pipeline.SessionStore
	config   *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Analyzer          FrameAnalyzer
	Sessions          pipeline.SessionStore
	ProcessingTimeout int64 // per-frame timeout in milliseconds
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("Analyzer is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("Sessions is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:   client,
		server:   server,
		mux:      mux,
		analyzer: cfg.Analyzer,
		sessions: cfg.Sessions,
		config:   cfg,
	}

	mux.HandleFunc(TaskTypeAnalyzeFrame, consumer.handleAnalyzeFrame)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// EnqueueFrame submits a frame analysis task to the queue.
func (c *Consumer) EnqueueFrame(ctx context.Context, sessionID, docType string, imageData []byte) error {
	payload, err := json.Marshal(FramePayload{
		SessionID: sessionID,
		DocType:   docType,
		ImageData: imageData,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal frame payload: %w", err)
	}
	_, err = c.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeAnalyzeFrame, payload),
		asynq.Queue(c.config.QueueName),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue frame for session %s: %w", sessionID, err)
	}
	return nil
}

// handleAnalyzeFrame processes one frame analysis task
func (c *Consumer) handleAnalyzeFrame(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload FramePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal frame payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.SessionID == "" {
		return fmt.Errorf("frame payload has no session ID: %w", asynq.SkipRetry)
	}

	log.Printf("[Session %s] Analyzing frame: docType=%s, size=%d bytes",
		payload.SessionID, payload.DocType, len(payload.ImageData))

	// A redelivered task for a resolved session is dropped, not reprocessed.
	if session, err := c.sessions.Get(ctx, payload.SessionID); err == nil && session.Terminal() {
		log.Printf("[Session %s] Skipping frame: session already %s", payload.SessionID, session.Stage)
		return nil
	}

	timeout := config.DefaultProcessingTimeoutMs * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}
	analyzeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.analyzer.AnalyzeFrame(analyzeCtx, payload.SessionID, payload.DocType, payload.ImageData)
	duration := time.Since(startTime)

	if err != nil {
		log.Printf("[Session %s] Frame analysis failed after %v: %v", payload.SessionID, duration, err)

		// Retrying a frame the user must retake wastes queue capacity.
		if verr, ok := err.(*errors.VerifyError); ok && verr.UserCorrectable() {
			return fmt.Errorf("frame analysis failed: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("frame analysis failed: %w", err)
	}

	log.Printf("[Session %s] Frame analysis completed in %v: band=%s, match=%.1f, tamper=%.1f",
		payload.SessionID, duration,
		result.Summary.ConfidenceBand, result.Summary.MatchScore, result.Summary.TamperRiskScore)

	return nil
}
