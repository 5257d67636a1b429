package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bakkyhq/bakky/src/taskqueue"
	toolutil "github.com/bakkyhq/bakky/testers/toolutil"
)

func main() {
	root := &cobra.Command{
		Use:   "taskscli",
		Short: "Task queue tester",
		Long:  "A simple task queue CLI with send and work commands.",
	}

	var (
		url     string
		subject string
		queue   string
	)
	root.PersistentFlags().StringVar(&url, "url", "nats://localhost:4222", "NATS server URL")
	root.PersistentFlags().StringVar(&subject, "subject", "bakky.tasks", "Base task subject")
	root.PersistentFlags().StringVar(&queue, "queue", "bakky-workers", "Worker queue group")

	newQueue := func() (*taskqueue.Queue, error) {
		return taskqueue.NewQueue(taskqueue.Options{URL: url, Subject: subject, Queue: queue})
	}

	var (
		payload  string
		interval string
	)
	sendCmd := &cobra.Command{
		Use:   "send <task>",
		Short: "Periodically enqueue tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dur, err := time.ParseDuration(interval)
			if err != nil {
				return fmt.Errorf("invalid interval: %w", err)
			}

			q, err := newQueue()
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			ticker := time.NewTicker(dur)
			defer ticker.Stop()
			fmt.Printf("Enqueueing task %q every %s\n", args[0], dur)
			for range ticker.C {
				body, err := toolutil.BuildPayload(payload)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				var value any
				if err := json.Unmarshal(body, &value); err != nil {
					value = string(body)
				}
				id, err := q.Enqueue(context.Background(), args[0], value)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Enqueue error: %v\n", err)
				} else {
					fmt.Printf("Enqueued task %s\n", id)
				}
			}
			return nil
		},
	}
	toolutil.AddPayloadFlag(sendCmd, &payload, "{json}")
	toolutil.AddIntervalFlag(sendCmd, &interval, "5s")

	workCmd := &cobra.Command{
		Use:   "work <task>",
		Short: "Consume tasks and log them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := newQueue()
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			err = q.Subscribe(args[0], func(ctx context.Context, task taskqueue.Task) error {
				sections := []toolutil.MessageSection{
					{Title: "Task", Items: []toolutil.KV{
						{Key: "ID", Value: task.ID},
						{Key: "Name", Value: task.Name},
						{Key: "Enqueued", Value: task.EnqueuedAt.Format(time.RFC3339)},
					}},
				}
				toolutil.PrintColoredMessage("Task Queue", sections, task.Payload)
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Printf("Working task %q on queue %q\n", args[0], queue)
			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
			<-sigc
			fmt.Println("\nInterrupted by user")
			return nil
		},
	}

	root.AddCommand(sendCmd, workCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
