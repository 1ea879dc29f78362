// Package broker implements the Redis task transport. Tasks are JSON
// envelopes pushed onto a pending list; workers move them atomically to a
// processing list, acknowledge on success and park repeated failures on a
// dead-letter list.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/alxcrm/crm/internal/log"
)

const (
	queuePending    = "crm:queue:pending"
	queueProcessing = "crm:queue:processing"
	queueDead       = "crm:queue:dead"
)

// ErrEmpty is returned by Reserve when no task arrived within the wait
// window.
var ErrEmpty = errors.New("broker: queue empty")

// Task is the wire envelope of one unit of work.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempt    int             `json:"attempt"`
	MaxRetries int             `json:"max_retries"`
}

// Config holds the Redis connection settings for the broker.
type Config struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries int
}

// Client is the Redis-backed task queue shared by producers, the beat
// scheduler and workers.
type Client struct {
	rdb        *redis.Client
	logger     zerolog.Logger
	maxRetries int
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  -1, // blocking reads manage their own deadline
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := log.WithComponent("broker")
	logger.Info().
		Str("event", "broker.connected").
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis broker")

	return &Client{rdb: rdb, logger: logger, maxRetries: cfg.MaxRetries}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests.
func NewWithClient(rdb *redis.Client, maxRetries int) *Client {
	return &Client{rdb: rdb, logger: log.WithComponent("broker"), maxRetries: maxRetries}
}

// Enqueue creates a task envelope for the named task and pushes it onto
// the pending queue. The payload may be nil.
func (c *Client) Enqueue(ctx context.Context, name string, payload any) (Task, error) {
	task := Task{
		ID:         uuid.NewString(),
		Name:       name,
		EnqueuedAt: time.Now().UTC(),
		MaxRetries: c.maxRetries,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Task{}, fmt.Errorf("marshal payload: %w", err)
		}
		task.Payload = raw
	}
	if err := c.push(ctx, queuePending, task); err != nil {
		return Task{}, err
	}
	c.logger.Info().
		Str("event", "broker.enqueued").
		Str("task_id", task.ID).
		Str("task", task.Name).
		Msg("task enqueued")
	return task, nil
}

// Reserve blocks up to wait for a pending task and moves it to the
// processing queue in one step, so a crashing worker never loses it.
// Returns ErrEmpty when the wait window elapses without work.
func (c *Client) Reserve(ctx context.Context, wait time.Duration) (Task, error) {
	raw, err := c.rdb.BLMove(ctx, queuePending, queueProcessing, "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return Task{}, ErrEmpty
	}
	if err != nil {
		return Task{}, fmt.Errorf("reserve task: %w", err)
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// Unparseable entries would wedge the processing list; park them.
		_ = c.rdb.LRem(ctx, queueProcessing, 1, raw).Err()
		_ = c.rdb.LPush(ctx, queueDead, raw).Err()
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	return task, nil
}

// Ack removes a finished task from the processing queue.
func (c *Client) Ack(ctx context.Context, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := c.rdb.LRem(ctx, queueProcessing, 1, string(raw)).Err(); err != nil {
		return fmt.Errorf("ack task: %w", err)
	}
	return nil
}

// Retry removes the task from the processing queue and either requeues it
// with an incremented attempt counter or, once the attempts are spent,
// parks it on the dead-letter queue. It reports whether the task was
// requeued.
func (c *Client) Retry(ctx context.Context, task Task) (bool, error) {
	if err := c.Ack(ctx, task); err != nil {
		return false, err
	}
	task.Attempt++
	if task.Attempt > task.MaxRetries {
		if err := c.push(ctx, queueDead, task); err != nil {
			return false, err
		}
		c.logger.Warn().
			Str("event", "broker.dead_letter").
			Str("task_id", task.ID).
			Str("task", task.Name).
			Int("attempt", task.Attempt).
			Msg("task moved to dead-letter queue")
		return false, nil
	}
	if err := c.push(ctx, queuePending, task); err != nil {
		return false, err
	}
	c.logger.Info().
		Str("event", "broker.requeued").
		Str("task_id", task.ID).
		Str("task", task.Name).
		Int("attempt", task.Attempt).
		Msg("task requeued for retry")
	return true, nil
}

func (c *Client) push(ctx context.Context, queue string, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := c.rdb.LPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", queue, err)
	}
	return nil
}

// Depth returns the number of pending tasks.
func (c *Client) Depth(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, queuePending).Result()
}

// ProcessingDepth returns the number of tasks currently being worked on.
func (c *Client) ProcessingDepth(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, queueProcessing).Result()
}

// DeadDepth returns the number of dead-lettered tasks.
func (c *Client) DeadDepth(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, queueDead).Result()
}

// Ping verifies the Redis connection. Feeds the readiness checker.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
