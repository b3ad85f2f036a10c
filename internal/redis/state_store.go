package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

const (
	stateTTL = 24 * time.Hour

	// EventsChannel receives one JSON Event per observed task change.
	EventsChannel = "taskqueue:events"

	fieldStatus = "status"
	fieldTask   = "task"
)

func taskKey(taskID string) string { return "taskqueue:task:" + taskID }

// Event is published on EventsChannel whenever a task changes.
type Event struct {
	TaskID    string          `json:"task_id"`
	Name      string          `json:"name"`
	Status    domain.Status   `json:"status"`
	Priority  domain.Priority `json:"priority"`
	Type      domain.TaskType `json:"task_type"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StateStore mirrors task state into Redis so other processes can watch the
// queue without reading its file. The JSON file stays authoritative.
type StateStore interface {
	SetTask(ctx context.Context, task *domain.Task) error
	GetStatus(ctx context.Context, taskID string) (domain.Status, error)
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
}

type stateStore struct {
	client redis.UniversalClient
}

// NewStateStore creates a Redis-backed StateStore.
func NewStateStore(client redis.UniversalClient) StateStore {
	return &stateStore{client: client}
}

// NewClient creates and returns a new Redis client.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     4,
	})
}

// SetTask stores the task snapshot, refreshes its TTL and publishes an Event,
// all in one transaction.
func (s *stateStore) SetTask(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	event, err := json.Marshal(newEvent(task))
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", task.ID, err)
	}

	key := taskKey(task.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fieldStatus, string(task.Status), fieldTask, data)
	pipe.Expire(ctx, key, stateTTL)
	pipe.Publish(ctx, EventsChannel, event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mirror task %s: %w", task.ID, err)
	}
	return nil
}

func (s *stateStore) GetStatus(ctx context.Context, taskID string) (domain.Status, error) {
	val, err := s.client.HGet(ctx, taskKey(taskID), fieldStatus).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", &domain.TaskNotFoundError{TaskID: taskID}
		}
		return "", fmt.Errorf("redis get status for %s: %w", taskID, err)
	}
	return domain.Status(val), nil
}

func (s *stateStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := s.client.HGet(ctx, taskKey(taskID), fieldTask).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &domain.TaskNotFoundError{TaskID: taskID}
		}
		return nil, fmt.Errorf("redis get task %s: %w", taskID, err)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

func newEvent(t *domain.Task) Event {
	return Event{
		TaskID:    t.ID,
		Name:      t.Name,
		Status:    t.Status,
		Priority:  t.Priority,
		Type:      t.Type,
		UpdatedAt: t.UpdatedAt,
	}
}
