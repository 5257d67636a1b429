package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
)

// Task is the unit of work published to the queue. Payload carries the
// task-specific arguments as JSON.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Handler processes one task. Returning an error marks the task as failed.
type Handler func(ctx context.Context, task Task) error

// Result is the outcome a worker reports back to a waiting enqueuer.
type Result struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Options holds the queue connection settings. Subject is the base subject
// tasks are published under, Queue the worker queue group name.
type Options struct {
	URL     string
	Subject string
	Queue   string
}

// Queue publishes and consumes tasks over NATS subjects. Workers subscribed
// with the same queue group share the task stream, so each task is handled
// by exactly one of them.
type Queue struct {
	opts   Options
	logger *slog.Logger
	conn   *nats.Conn
	subs   []*nats.Subscription
}

func NewQueue(opts Options) (*Queue, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("task queue URL is required")
	}
	if opts.Subject == "" {
		return nil, fmt.Errorf("task queue subject is required")
	}
	if opts.Queue == "" {
		return nil, fmt.Errorf("task queue group name is required")
	}

	logger := slog.Default().With("context", "Task Queue")

	conn, err := nats.Connect(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS server: %w", err)
	}
	logger.Info("task queue connected", "url", opts.URL, "subject", opts.Subject, "queue", opts.Queue)

	return &Queue{
		opts:   opts,
		logger: logger,
		conn:   conn,
	}, nil
}

func (q *Queue) subject(name string) string {
	return q.opts.Subject + "." + name
}

// Enqueue publishes a task and returns its assigned id. The payload is
// JSON-encoded into the task envelope.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	if name == "" {
		return "", fmt.Errorf("task name is required")
	}

	task, data, err := encodeTask(name, payload)
	if err != nil {
		return "", err
	}

	if err := q.conn.Publish(q.subject(name), data); err != nil {
		return "", fmt.Errorf("failed to publish task: %w", err)
	}
	if err := q.conn.FlushWithContext(ctx); err != nil {
		return "", fmt.Errorf("failed to flush task: %w", err)
	}

	q.logger.Debug("task enqueued", "task", name, "id", task.ID)
	return task.ID, nil
}

// EnqueueWait publishes a task and blocks until a worker reports its outcome
// or the context expires. The reply carries the task id and, on failure, the
// handler's error text.
func (q *Queue) EnqueueWait(ctx context.Context, name string, payload any) (Result, error) {
	if name == "" {
		return Result{}, fmt.Errorf("task name is required")
	}

	task, data, err := encodeTask(name, payload)
	if err != nil {
		return Result{}, err
	}

	msg, err := q.conn.RequestWithContext(ctx, q.subject(name), data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to request task %q: %w", name, err)
	}

	var result Result
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		return Result{}, fmt.Errorf("failed to decode task result: %w", err)
	}

	q.logger.Debug("task result received", "task", name, "id", task.ID, "ok", result.OK)
	return result, nil
}

func encodeTask(name string, payload any) (Task, []byte, error) {
	task := Task{
		ID:         uuid.NewString(),
		Name:       name,
		EnqueuedAt: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Task{}, nil, fmt.Errorf("failed to encode task payload: %w", err)
		}
		task.Payload = data
	}

	data, err := json.Marshal(task)
	if err != nil {
		return Task{}, nil, fmt.Errorf("failed to encode task: %w", err)
	}
	return task, data, nil
}

// Subscribe registers a handler for the named task. The subscription joins
// the queue group, so tasks are load balanced across subscribed workers.
func (q *Queue) Subscribe(name string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("task name is required")
	}
	if handler == nil {
		return fmt.Errorf("task handler is required")
	}

	sub, err := q.conn.QueueSubscribe(q.subject(name), q.opts.Queue, func(msg *nats.Msg) {
		var task Task
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			q.logger.Error("failed to decode task", "subject", msg.Subject, "err", err)
			q.reply(msg, Result{OK: false, Error: "malformed task envelope"})
			return
		}

		q.logger.Debug("task received", "task", task.Name, "id", task.ID)
		if err := handler(context.Background(), task); err != nil {
			q.logger.Error("task failed", "task", task.Name, "id", task.ID, "err", err)
			q.reply(msg, Result{ID: task.ID, OK: false, Error: err.Error()})
			return
		}
		q.logger.Debug("task completed", "task", task.Name, "id", task.ID)
		q.reply(msg, Result{ID: task.ID, OK: true})
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to task %q: %w", name, err)
	}

	q.subs = append(q.subs, sub)
	q.logger.Info("task handler registered", "task", name, "queue", q.opts.Queue)
	return nil
}

// reply reports the task outcome back to a waiting enqueuer. Fire-and-forget
// tasks carry no reply subject and are skipped.
func (q *Queue) reply(msg *nats.Msg, result Result) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		q.logger.Error("failed to encode task result", "id", result.ID, "err", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		q.logger.Error("failed to send task result", "id", result.ID, "err", err)
	}
}

// Close drains the subscriptions and closes the connection, letting
// in-flight handlers finish.
func (q *Queue) Close() error {
	for _, sub := range q.subs {
		if err := sub.Drain(); err != nil {
			q.logger.Warn("error draining task subscription", "subject", sub.Subject, "err", err)
		}
	}
	if q.conn != nil && q.conn.IsConnected() {
		if err := q.conn.Drain(); err != nil {
			return fmt.Errorf("error draining NATS connection: %w", err)
		}
	}
	return nil
}
