package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/logging"
	"github.com/example/rekognizer/internal/retry"
)

// EventDispatcher emits notifications without waiting for delivery.
type EventDispatcher interface {
	Dispatch(ctx context.Context, name string, payload interface{})
}

// Publisher abstracts the Redis operation used by the dispatcher to make testing easier.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Event is the envelope published on the event channel.
type Event struct {
	ID         string      `json:"id"`
	Name       string      `json:"event"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// RedisDispatcher publishes events to a Redis channel from a background goroutine.
// Publish failures are logged and never reach the caller.
type RedisDispatcher struct {
	publisher Publisher
	channel   string
	logger    *zap.Logger
	policy    retry.Policy
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewRedisDispatcher constructs a dispatcher publishing to channel.
func NewRedisDispatcher(publisher Publisher, channel string, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{
		publisher: publisher,
		channel:   channel,
		logger:    logger.Named("event_dispatcher"),
		policy:    retry.DefaultPolicy,
		timeout:   5 * time.Second,
	}
}

// Dispatch returns immediately. ctx only contributes the request id; cancelling it
// does not cancel the publish.
func (d *RedisDispatcher) Dispatch(ctx context.Context, name string, payload interface{}) {
	requestID := logging.RequestID(ctx)
	event := Event{
		ID:         uuid.NewString(),
		Name:       name,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		opLogger := logging.WithOperation(d.logger, "events.publish", requestID)

		data, err := json.Marshal(event)
		if err != nil {
			opLogger.Error("failed to serialize event", zap.Error(err), zap.String("event", name))
			return
		}

		pubCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		err = retry.Do(pubCtx, d.logger, d.policy, "events.publish", requestID, func() error {
			return d.publisher.Publish(pubCtx, d.channel, data).Err()
		})
		if err != nil {
			opLogger.Warn("event dropped", zap.Error(err), zap.String("event", name), zap.String("event_id", event.ID))
			return
		}
		opLogger.Debug("event published", zap.String("event", name), zap.String("event_id", event.ID))
	}()
}

// Wait blocks until every in-flight publish has finished.
func (d *RedisDispatcher) Wait() {
	d.wg.Wait()
}
