package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"homehub/internal/models"
	"homehub/internal/values"
)

// streamMaxLen caps each per-device Redis stream.
const streamMaxLen = 1000

// HistoryWriter persists one delivered state change.
type HistoryWriter interface {
	Insert(ctx context.Context, deviceID string, target models.DeviceTarget, value values.Value, timestamp time.Time) error
}

// Worker consumes telemetry tasks: each accepted state change is
// appended to the device's Redis stream and written to the history
// table. Failed tasks are retried by the queue.
type Worker struct {
	srv     *asynq.Server
	redis   *redis.Client
	history HistoryWriter
	logger  zerolog.Logger
}

// NewWorker creates a telemetry worker on the given Redis instance.
func NewWorker(redisAddr string, redisClient *redis.Client, history HistoryWriter, logger zerolog.Logger) *Worker {
	return &Worker{
		srv: asynq.NewServer(
			asynq.RedisClientOpt{Addr: redisAddr},
			asynq.Config{Concurrency: 10},
		),
		redis:   redisClient,
		history: history,
		logger:  logger,
	}
}

// Run processes tasks until Shutdown is called.
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskStatePublish, w.handleStatePublish)
	return w.srv.Run(mux)
}

// Shutdown stops the worker and waits for in-flight tasks.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

func (w *Worker) handleStatePublish(ctx context.Context, task *asynq.Task) error {
	var payload statePublishPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("telemetry: decode payload: %w", err)
	}

	stream := "stream:state:" + payload.Target.Identifier
	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"channel":   payload.Target.Channel,
			"contact":   payload.Target.Contact,
			"value":     payload.Value.String(),
			"timestamp": payload.Timestamp.UnixNano(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("telemetry: stream append: %w", err)
	}

	if err := w.history.Insert(ctx, payload.DeviceID, payload.Target, payload.Value, payload.Timestamp); err != nil {
		return err
	}

	w.logger.Debug().Stringer("target", payload.Target).Str("stream", stream).
		Msg("state change delivered")
	return nil
}
