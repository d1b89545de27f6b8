/**
 * Progress event publisher.
 *
 * Publishes session stage transitions on a Redis channel so a frontend can
 * stream progress over WebSocket instead of polling the session store.
 * Publishing is fire and forget; printing a warning is the only reaction to
 * a failure.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ncsverify/verifier-worker/internal/pipeline"
)

// EventChannel is the Redis pub/sub channel for session progress events.
const EventChannel = "verifier:sessions:events"

// ProgressEvent is the wire form of one stage transition.
type ProgressEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId"`
	Stage     string `json:"stage"`
	Percent   int    `json:"percent"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RedisPublisher implements pipeline.ProgressPublisher over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects a publisher to the given Redis URL.
func NewRedisPublisher(redisURL string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &RedisPublisher{client: redis.NewClient(opt)}, nil
}

// PublishProgress broadcasts one stage transition.
func (p *RedisPublisher) PublishProgress(ctx context.Context, sessionID string, stage pipeline.Stage, percent int, message string) {
	event := ProgressEvent{
		Event:     fmt.Sprintf("session:%s", stage),
		SessionID: sessionID,
		Stage:     string(stage),
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	eventData, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Session %s] Warning: failed to marshal progress event: %v", sessionID, err)
		return
	}
	if err := p.client.Publish(ctx, EventChannel, eventData).Err(); err != nil {
		log.Printf("[Session %s] Warning: failed to publish progress event: %v", sessionID, err)
	}
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
