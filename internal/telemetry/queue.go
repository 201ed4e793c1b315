// Package telemetry forwards accepted state changes to downstream
// consumers through a task queue. The engine enqueues and forgets;
// delivery retries happen on the worker side.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"homehub/internal/models"
	"homehub/internal/values"
)

// TaskStatePublish is the task type for one accepted state change.
const TaskStatePublish = "telemetry:state_publish"

type statePublishPayload struct {
	DeviceID  string              `json:"deviceId"`
	Target    models.DeviceTarget `json:"target"`
	Value     values.Value        `json:"value"`
	Timestamp time.Time           `json:"timestamp"`
}

// Queue enqueues telemetry tasks. Implements the state manager's sink.
type Queue struct {
	client *asynq.Client
	logger zerolog.Logger
}

// NewQueue creates a telemetry queue on the given Redis instance.
func NewQueue(redisAddr string, logger zerolog.Logger) *Queue {
	return &Queue{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		logger: logger,
	}
}

// PublishState enqueues one state change for downstream delivery.
func (q *Queue) PublishState(_ context.Context, deviceID string, target models.DeviceTarget, value values.Value, timestamp time.Time) error {
	payload, err := json.Marshal(statePublishPayload{
		DeviceID:  deviceID,
		Target:    target,
		Value:     value,
		Timestamp: timestamp,
	})
	if err != nil {
		return fmt.Errorf("telemetry: marshal payload: %w", err)
	}

	task := asynq.NewTask(TaskStatePublish, payload)
	info, err := q.client.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("telemetry: enqueue: %w", err)
	}
	q.logger.Trace().Str("task", info.ID).Stringer("target", target).
		Msg("telemetry task enqueued")
	return nil
}

// Close releases the queue's Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}
