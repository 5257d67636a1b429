package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"
)

// startNATSServer starts an embedded NATS server on an ephemeral port.
// Returns its address (host:port) and a cleanup function.
func startNATSServer(t *testing.T) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot get free port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	port := addr[strings.LastIndex(addr, ":")+1:]
	opts := &server.Options{
		Host:            "127.0.0.1",
		Port:            mustAtoi(port),
		NoSystemAccount: true,
		JetStream:       false,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("failed creating nats server: %v", err)
	}
	go srv.Start()

	if !srv.ReadyForConnections(2 * time.Second) {
		t.Fatal("nats server not ready")
	}

	cleanup := func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	}
	return addr, cleanup
}

func mustAtoi(s string) int {
	var n int
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func newTestQueue(t *testing.T, addr string) *Queue {
	t.Helper()
	queue, err := NewQueue(Options{
		URL:     "nats://" + addr,
		Subject: "test.tasks",
		Queue:   "test-workers",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = queue.Close() })
	return queue
}

func TestNewQueueValidation(t *testing.T) {
	_, err := NewQueue(Options{Subject: "s", Queue: "q"})
	require.Error(t, err)
	_, err = NewQueue(Options{URL: "nats://localhost:4222", Queue: "q"})
	require.Error(t, err)
	_, err = NewQueue(Options{URL: "nats://localhost:4222", Subject: "s"})
	require.Error(t, err)
}

func TestEnqueueAndHandle(t *testing.T) {
	addr, cleanup := startNATSServer(t)
	defer cleanup()

	queue := newTestQueue(t, addr)

	received := make(chan Task, 1)
	require.NoError(t, queue.Subscribe("notify", func(ctx context.Context, task Task) error {
		received <- task
		return nil
	}))

	id, err := queue.Enqueue(context.Background(), "notify", map[string]any{"message": "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case task := <-received:
		require.Equal(t, id, task.ID)
		require.Equal(t, "notify", task.Name)
		require.False(t, task.EnqueuedAt.IsZero())

		var payload map[string]any
		require.NoError(t, json.Unmarshal(task.Payload, &payload))
		require.Equal(t, "hello", payload["message"])
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for task")
	}
}

func TestEnqueueWaitReportsOutcome(t *testing.T) {
	addr, cleanup := startNATSServer(t)
	defer cleanup()

	queue := newTestQueue(t, addr)
	worker := newTestQueue(t, addr)

	require.NoError(t, worker.Subscribe("score", func(ctx context.Context, task Task) error {
		var payload map[string]float64
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return err
		}
		if payload["value"] < 0 {
			return errors.New("negative score")
		}
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := queue.EnqueueWait(ctx, "score", map[string]float64{"value": 7})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.NotEmpty(t, result.ID)
	require.Empty(t, result.Error)

	result, err = queue.EnqueueWait(ctx, "score", map[string]float64{"value": -1})
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, "negative score", result.Error)
}

func TestEnqueueWaitTimesOutWithoutWorker(t *testing.T) {
	addr, cleanup := startNATSServer(t)
	defer cleanup()

	queue := newTestQueue(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := queue.EnqueueWait(ctx, "nobody", nil)
	require.Error(t, err)
}

func TestEnqueueValidation(t *testing.T) {
	addr, cleanup := startNATSServer(t)
	defer cleanup()

	queue := newTestQueue(t, addr)

	_, err := queue.Enqueue(context.Background(), "", nil)
	require.Error(t, err)

	require.Error(t, queue.Subscribe("", nil))
	require.Error(t, queue.Subscribe("task", nil))
}

func TestQueueGroupBalancing(t *testing.T) {
	addr, cleanup := startNATSServer(t)
	defer cleanup()

	queue := newTestQueue(t, addr)
	workerA := newTestQueue(t, addr)
	workerB := newTestQueue(t, addr)

	var handled atomic.Int64
	handler := func(ctx context.Context, task Task) error {
		handled.Add(1)
		return nil
	}
	require.NoError(t, workerA.Subscribe("work", handler))
	require.NoError(t, workerB.Subscribe("work", handler))

	const total = 20
	for i := 0; i < total; i++ {
		_, err := queue.Enqueue(context.Background(), "work", nil)
		require.NoError(t, err)
	}

	// Each task must be handled by exactly one of the two workers.
	require.Eventually(t, func() bool {
		return handled.Load() == total
	}, 5*time.Second, 50*time.Millisecond)
}

func TestUnroutedTaskDoesNotReachOtherHandlers(t *testing.T) {
	addr, cleanup := startNATSServer(t)
	defer cleanup()

	queue := newTestQueue(t, addr)

	received := make(chan Task, 1)
	require.NoError(t, queue.Subscribe("wanted", func(ctx context.Context, task Task) error {
		received <- task
		return nil
	}))

	_, err := queue.Enqueue(context.Background(), "other", nil)
	require.NoError(t, err)

	select {
	case task := <-received:
		t.Fatalf("unexpected task received: %+v", task)
	case <-time.After(300 * time.Millisecond):
	}
}
