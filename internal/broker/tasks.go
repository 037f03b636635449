package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-gateway/internal/models"
	"order-gateway/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// ErrMalformedTask marks a message that can never be processed
var ErrMalformedTask = errors.New("malformed task")

// Publisher writes one keyed JSON message
type Publisher interface {
	Publish(ctx context.Context, key string, v interface{}) error
}

// TaskPublisher enqueues order pipeline tasks. Settlement goes to the
// delayed topic, everything else to the immediate one.
type TaskPublisher struct {
	immediate   Publisher
	delayed     Publisher
	settleDelay time.Duration
	now         func() time.Time
}

// NewTaskPublisher creates a new task publisher
func NewTaskPublisher(immediate, delayed Publisher, settleDelay time.Duration) *TaskPublisher {
	return &TaskPublisher{
		immediate:   immediate,
		delayed:     delayed,
		settleDelay: settleDelay,
		now:         time.Now,
	}
}

// WithClock overrides the clock, used by tests
func (tp *TaskPublisher) WithClock(now func() time.Time) *TaskPublisher {
	tp.now = now
	return tp
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

func (tp *TaskPublisher) publish(ctx context.Context, p Publisher, taskType string, orderID int64, delay time.Duration, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}

	now := tp.now()
	task := models.Task{
		TaskID:     uuid.NewString(),
		TaskType:   taskType,
		EnqueuedAt: now,
		Payload:    raw,
	}
	if delay > 0 {
		task.NotBefore = now.Add(delay)
	}

	if err := p.Publish(ctx, orderKey(orderID), task); err != nil {
		return err
	}
	util.TasksEnqueuedTotal.WithLabelValues(taskType).Inc()
	return nil
}

// PublishCreateOrder enqueues order shell finalization
func (tp *TaskPublisher) PublishCreateOrder(ctx context.Context, payload *models.CreateOrderPayload) error {
	return tp.publish(ctx, tp.immediate, models.TaskTypeCreateOrder, payload.OrderID, 0, payload)
}

// PublishSettleOrder enqueues settlement to run after the processing delay
func (tp *TaskPublisher) PublishSettleOrder(ctx context.Context, payload *models.SettleOrderPayload) error {
	return tp.publish(ctx, tp.delayed, models.TaskTypeSettleOrder, payload.OrderID, tp.settleDelay, payload)
}

// PublishUpdateOrder enqueues an address/card change
func (tp *TaskPublisher) PublishUpdateOrder(ctx context.Context, payload *models.UpdateOrderPayload) error {
	return tp.publish(ctx, tp.immediate, models.TaskTypeUpdateOrder, payload.OrderID, 0, payload)
}

// PublishCancelOrder enqueues a cancellation
func (tp *TaskPublisher) PublishCancelOrder(ctx context.Context, payload *models.CancelOrderPayload) error {
	return tp.publish(ctx, tp.immediate, models.TaskTypeCancelOrder, payload.OrderID, 0, payload)
}

// TaskRouter decodes task messages and routes them to registered handlers
type TaskRouter struct {
	onCreateOrder func(context.Context, *models.Task, *models.CreateOrderPayload) error
	onSettleOrder func(context.Context, *models.Task, *models.SettleOrderPayload) error
	onUpdateOrder func(context.Context, *models.Task, *models.UpdateOrderPayload) error
	onCancelOrder func(context.Context, *models.Task, *models.CancelOrderPayload) error
	now           func() time.Time
}

// NewTaskRouter creates a new task router
func NewTaskRouter() *TaskRouter {
	return &TaskRouter{now: time.Now}
}

// WithClock overrides the clock, used by tests
func (r *TaskRouter) WithClock(now func() time.Time) *TaskRouter {
	r.now = now
	return r
}

// OnCreateOrder registers a handler for create tasks
func (r *TaskRouter) OnCreateOrder(handler func(context.Context, *models.Task, *models.CreateOrderPayload) error) {
	r.onCreateOrder = handler
}

// OnSettleOrder registers a handler for settle tasks
func (r *TaskRouter) OnSettleOrder(handler func(context.Context, *models.Task, *models.SettleOrderPayload) error) {
	r.onSettleOrder = handler
}

// OnUpdateOrder registers a handler for update tasks
func (r *TaskRouter) OnUpdateOrder(handler func(context.Context, *models.Task, *models.UpdateOrderPayload) error) {
	r.onUpdateOrder = handler
}

// OnCancelOrder registers a handler for cancel tasks
func (r *TaskRouter) OnCancelOrder(handler func(context.Context, *models.Task, *models.CancelOrderPayload) error) {
	r.onCancelOrder = handler
}

// Decode parses the task envelope of msg
func (r *TaskRouter) Decode(msg kafka.Message) (*models.Task, error) {
	var task models.Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if task.TaskID == "" || task.TaskType == "" {
		return nil, fmt.Errorf("%w: missing task id or type", ErrMalformedTask)
	}
	return &task, nil
}

// WaitUntilDue blocks until the task's not-before time has passed
func (r *TaskRouter) WaitUntilDue(ctx context.Context, task *models.Task) error {
	if task.NotBefore.IsZero() {
		return nil
	}
	wait := task.NotBefore.Sub(r.now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dispatch decodes the payload and calls the handler registered for its type
func (r *TaskRouter) Dispatch(ctx context.Context, task *models.Task) error {
	switch task.TaskType {
	case models.TaskTypeCreateOrder:
		var payload models.CreateOrderPayload
		if err := decodePayload(task, &payload); err != nil {
			return err
		}
		if r.onCreateOrder != nil {
			return r.onCreateOrder(ctx, task, &payload)
		}

	case models.TaskTypeSettleOrder:
		var payload models.SettleOrderPayload
		if err := decodePayload(task, &payload); err != nil {
			return err
		}
		if r.onSettleOrder != nil {
			return r.onSettleOrder(ctx, task, &payload)
		}

	case models.TaskTypeUpdateOrder:
		var payload models.UpdateOrderPayload
		if err := decodePayload(task, &payload); err != nil {
			return err
		}
		if r.onUpdateOrder != nil {
			return r.onUpdateOrder(ctx, task, &payload)
		}

	case models.TaskTypeCancelOrder:
		var payload models.CancelOrderPayload
		if err := decodePayload(task, &payload); err != nil {
			return err
		}
		if r.onCancelOrder != nil {
			return r.onCancelOrder(ctx, task, &payload)
		}

	default:
		return fmt.Errorf("%w: unknown task type %q", ErrMalformedTask, task.TaskType)
	}

	return nil
}

func decodePayload(task *models.Task, v interface{}) error {
	if err := json.Unmarshal(task.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedTask, task.TaskType, err)
	}
	return nil
}
