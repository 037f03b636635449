package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"order-gateway/internal/broker"
	"order-gateway/internal/models"
	"order-gateway/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Pipeline is the set of order task handlers a worker drives
type Pipeline interface {
	HandleCreateOrder(ctx context.Context, task *models.Task, payload *models.CreateOrderPayload) error
	HandleSettleOrder(ctx context.Context, task *models.Task, payload *models.SettleOrderPayload) error
	HandleUpdateOrder(ctx context.Context, task *models.Task, payload *models.UpdateOrderPayload) error
	HandleCancelOrder(ctx context.Context, task *models.Task, payload *models.CancelOrderPayload) error
}

// Options tune retries and per-task limits
type Options struct {
	MaxRetries  int
	Backoff     time.Duration
	TaskTimeout time.Duration
}

// TaskWorker consumes one task topic and runs each task through the pipeline
type TaskWorker struct {
	name     string
	consumer *broker.Consumer
	router   *broker.TaskRouter
	opts     Options
	logger   *zap.Logger
}

// NewTaskWorker creates a worker and registers the pipeline handlers
func NewTaskWorker(name string, consumer *broker.Consumer, pipeline Pipeline, opts Options) *TaskWorker {
	router := broker.NewTaskRouter()

	router.OnCreateOrder(pipeline.HandleCreateOrder)
	router.OnSettleOrder(pipeline.HandleSettleOrder)
	router.OnUpdateOrder(pipeline.HandleUpdateOrder)
	router.OnCancelOrder(pipeline.HandleCancelOrder)

	return &TaskWorker{
		name:     name,
		consumer: consumer,
		router:   router,
		opts:     opts,
		logger:   util.GetLogger().With(zap.String("worker", name)),
	}
}

// Start starts the worker
func (w *TaskWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting task worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *TaskWorker) Stop() error {
	w.logger.Info("Stopping task worker")
	return w.consumer.Close()
}

// HandleMessage runs one task to completion. It returns an error only when
// ctx ends; failed tasks are logged and counted, never redelivered.
func (w *TaskWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	task, err := w.router.Decode(msg)
	if err != nil {
		w.logger.Error("Dropping malformed task", zap.Int64("offset", msg.Offset), zap.Error(err))
		util.TasksProcessedTotal.WithLabelValues("unknown", "malformed").Inc()
		return nil
	}

	if err := w.router.WaitUntilDue(ctx, task); err != nil {
		return err
	}

	logger := util.TaskLogger(task.TaskID, task.TaskType)
	start := time.Now()
	defer func() {
		util.TaskProcessingLatency.WithLabelValues(task.TaskType).Observe(time.Since(start).Seconds())
	}()

	for attempt := 0; ; attempt++ {
		task.Attempt = attempt
		err = w.runOnce(ctx, task)
		if err == nil {
			util.TasksProcessedTotal.WithLabelValues(task.TaskType, "success").Inc()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, broker.ErrMalformedTask) {
			logger.Error("Dropping malformed task", zap.Error(err))
			util.TasksProcessedTotal.WithLabelValues(task.TaskType, "malformed").Inc()
			return nil
		}
		if attempt >= w.opts.MaxRetries {
			break
		}

		logger.Warn("Task failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		util.TasksProcessedTotal.WithLabelValues(task.TaskType, "retry").Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.opts.Backoff * time.Duration(attempt+1)):
		}
	}

	logger.Error("Task failed permanently", zap.Int("attempts", task.Attempt+1), zap.Error(err))
	util.TasksProcessedTotal.WithLabelValues(task.TaskType, "failed").Inc()
	return nil
}

// runOnce dispatches task under the per-task timeout and turns a panic into an error
func (w *TaskWorker) runOnce(ctx context.Context, task *models.Task) (err error) {
	if w.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Task handler panicked",
				zap.String("task_id", task.TaskID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()

	return w.router.Dispatch(ctx, task)
}
