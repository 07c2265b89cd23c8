package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 3
	defaultBaseDelay    = 5 * time.Second
	defaultQueueTimeout = 5 * time.Second
)

// Queue is the notification task queue.
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler func(*Task) error) error
	PromoteDue(ctx context.Context) error
	Close() error
}

type RedisQueueConfig struct {
	MainQueue       string
	DelayedQueue    string
	ProcessingQueue string
	DLQ             string
	MaxRetries      int
	BaseDelay       time.Duration
	QueueTimeout    time.Duration
}

func DefaultRedisQueueConfig() *RedisQueueConfig {
	return &RedisQueueConfig{
		MainQueue:       "screening:notifications",
		DelayedQueue:    "screening:notifications:delayed",
		ProcessingQueue: "screening:notifications:processing",
		DLQ:             "screening:notifications:dlq",
		MaxRetries:      defaultMaxRetries,
		BaseDelay:       defaultBaseDelay,
		QueueTimeout:    defaultQueueTimeout,
	}
}

// RedisQueue implements Queue on redis lists: immediate tasks go to the
// main list, delayed tasks to a sorted set keyed by execute time, and
// tasks that exhaust their retries land in the DLQ list.
type RedisQueue struct {
	client       *redis.Client
	config       *RedisQueueConfig
	retryManager *RetryManager
}

func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig, retryManager *RetryManager) (*RedisQueue, error) {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig()
	}
	if retryManager == nil {
		retryManager = NewRetryManager(cfg.MaxRetries, cfg.BaseDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{
		client:       client,
		config:       cfg,
		retryManager: retryManager,
	}, nil
}

func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if !task.ExecuteAt.IsZero() && task.ExecuteAt.After(time.Now()) {
		score := float64(task.ExecuteAt.UnixNano()) / 1e9
		if err := r.client.ZAdd(ctx, r.config.DelayedQueue, &redis.Z{
			Score:  score,
			Member: taskData,
		}).Err(); err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}
		return nil
	}

	if err := r.client.LPush(ctx, r.config.MainQueue, taskData).Err(); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	return nil
}

// Subscribe consumes the main queue until ctx is cancelled.
func (r *RedisQueue) Subscribe(ctx context.Context, handler func(*Task) error) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Queue consumer stopped")
			return ctx.Err()
		default:
			if err := r.consumeOne(ctx, handler); err != nil && ctx.Err() == nil {
				logrus.Errorf("Queue consume error: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

// consumeOne moves a single task to the processing list, runs it, and
// either requeues it with backoff or drops it to the DLQ.
func (r *RedisQueue) consumeOne(ctx context.Context, handler func(*Task) error) error {
	taskData, err := r.client.BRPopLPush(ctx, r.config.MainQueue, r.config.ProcessingQueue, r.config.QueueTimeout).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to pop task: %w", err)
	}
	defer func() {
		if err := r.client.LRem(ctx, r.config.ProcessingQueue, 1, taskData).Err(); err != nil {
			logrus.Errorf("Failed to remove task from processing queue: %v", err)
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		logrus.Errorf("Dropping malformed task to DLQ: %v", err)
		return r.moveToDLQ(ctx, taskData)
	}

	task.Attempts++
	if err := handler(&task); err != nil {
		retry, delay := r.retryManager.ShouldRetry(&task, err)
		if !retry {
			logrus.WithFields(logrus.Fields{
				"task_id":  task.ID,
				"type":     task.Type,
				"attempts": task.Attempts,
			}).Errorf("Task failed permanently: %v", err)
			data, _ := json.Marshal(&task)
			return r.moveToDLQ(ctx, string(data))
		}

		logrus.WithFields(logrus.Fields{
			"task_id": task.ID,
			"delay":   delay,
		}).Warnf("Task failed, retrying: %v", err)

		task.ExecuteAt = time.Now().Add(delay)
		return r.Publish(ctx, &task)
	}

	return nil
}

// PromoteDue moves delayed tasks whose time has come onto the main queue.
func (r *RedisQueue) PromoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixNano()) / 1e9

	members, err := r.client.ZRangeByScore(ctx, r.config.DelayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed tasks: %w", err)
	}

	for _, member := range members {
		pipe := r.client.TxPipeline()
		pipe.ZRem(ctx, r.config.DelayedQueue, member)
		pipe.LPush(ctx, r.config.MainQueue, member)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to promote delayed task: %w", err)
		}
	}

	return nil
}

func (r *RedisQueue) moveToDLQ(ctx context.Context, taskData string) error {
	if err := r.client.LPush(ctx, r.config.DLQ, taskData).Err(); err != nil {
		return fmt.Errorf("failed to move task to dlq: %w", err)
	}
	return nil
}

func (r *RedisQueue) Close() error {
	return r.client.Close()
}
