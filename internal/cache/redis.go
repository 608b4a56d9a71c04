// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for match action logs.
const DefaultQueueName = "yudh_actions"

// MatchActionRecord holds the minimal info needed by the historian.
type MatchActionRecord struct {
	MatchID       uuid.UUID              `json:"match_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorID       uuid.UUID              `json:"actor_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ActionQueue pushes match actions onto a Redis list and pops them for the historian.
type ActionQueue struct {
	rdb   *redis.Client
	queue string
}

// NewActionQueue connects to Redis at addr and verifies the connection with a ping.
func NewActionQueue(ctx context.Context, addr string, db int, queue string) (*ActionQueue, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &ActionQueue{rdb: rdb, queue: queue}, nil
}

// PublishMatchAction serializes the record to JSON and pushes it to the queue.
func (q *ActionQueue) PublishMatchAction(ctx context.Context, record MatchActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchActionRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. It returns (nil, nil) when the
// queue stayed empty.
func (q *ActionQueue) Pop(ctx context.Context, timeout time.Duration) (*MatchActionRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.queue, err)
	}
	if len(res) < 2 {
		return nil, nil
	}

	// res[0] is the queue name and res[1] the payload.
	var record MatchActionRecord
	if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
		return nil, fmt.Errorf("invalid action record: %w", err)
	}
	return &record, nil
}

// Close releases the Redis client.
func (q *ActionQueue) Close() error {
	return q.rdb.Close()
}
