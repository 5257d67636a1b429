package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bakkyhq/bakky/src/rediscache"
	toolutil "github.com/bakkyhq/bakky/testers/toolutil"
)

func main() {
	root := &cobra.Command{
		Use:   "rediscli",
		Short: "Redis cache tester",
		Long:  "A simple Redis CLI to save, read, list and delete cached values.",
	}

	var (
		address string
		ttl     string
	)
	root.PersistentFlags().StringVar(&address, "address", "localhost:6379", "Redis address")
	root.PersistentFlags().StringVar(&ttl, "ttl", "1h", "Default cache TTL, e.g. 30s, 5m, 1h")

	newCache := func() (*rediscache.Cache, error) {
		dur, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid ttl: %w", err)
		}
		client, err := rediscache.Connect(context.Background(), rediscache.Options{Address: address})
		if err != nil {
			return nil, err
		}
		return rediscache.NewCache(client, dur), nil
	}

	var payload string
	saveCmd := &cobra.Command{
		Use:   "save <key>",
		Short: "Save a payload under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := newCache()
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			body, err := toolutil.BuildPayload(payload)
			if err != nil {
				return err
			}
			var value any
			if err := json.Unmarshal(body, &value); err != nil {
				value = string(body)
			}
			if err := cache.Save(context.Background(), args[0], value, 0); err != nil {
				return err
			}
			fmt.Printf("Saved key %q (%d bytes)\n", args[0], len(body))
			return nil
		},
	}
	toolutil.AddPayloadFlag(saveCmd, &payload, "{json}")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := newCache()
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			var value any
			found, err := cache.Get(context.Background(), args[0], &value)
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("Key %q not found\n", args[0])
				return nil
			}
			body, _ := json.Marshal(value)
			sections := []toolutil.MessageSection{
				{Title: "Key", Items: []toolutil.KV{{Key: "Name", Value: args[0]}}},
			}
			toolutil.PrintColoredMessage("Redis Cache", sections, body)
			return nil
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys [pattern]",
		Short: "List keys matching a glob pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := newCache()
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			keys, err := cache.Keys(context.Background(), pattern)
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			fmt.Printf("%d key(s)\n", len(keys))
			return nil
		},
	}

	var byPattern bool
	deleteCmd := &cobra.Command{
		Use:   "delete <key|pattern>",
		Short: "Delete a key, or every key matching a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := newCache()
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			if byPattern {
				deleted, err := cache.DeleteByPattern(context.Background(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d key(s)\n", deleted)
				return nil
			}

			existed, err := cache.Delete(context.Background(), args[0])
			if err != nil {
				return err
			}
			if existed {
				fmt.Printf("Deleted key %q\n", args[0])
			} else {
				fmt.Printf("Key %q not found\n", args[0])
			}
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&byPattern, "pattern", false, "Treat the argument as a glob pattern")

	root.AddCommand(saveCmd, getCmd, keysCmd, deleteCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
