package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bakkyhq/bakky/src/mongostore"
	toolutil "github.com/bakkyhq/bakky/testers/toolutil"
)

func main() {
	root := &cobra.Command{
		Use:   "mongocli",
		Short: "MongoDB tester",
		Long:  "A simple MongoDB CLI that inserts documents periodically and reads them back.",
	}

	var (
		uri        string
		database   string
		collection string
	)
	root.PersistentFlags().StringVar(&uri, "uri", "mongodb://localhost:27017", "MongoDB connection URI")
	root.PersistentFlags().StringVar(&database, "database", "bakky", "Database name")
	root.PersistentFlags().StringVar(&collection, "collection", "test_collection", "Collection name")

	newStore := func(ctx context.Context) (*mongostore.Store, *mongostore.Registry, error) {
		registry := mongostore.NewRegistry()
		client, err := registry.Client(ctx, mongostore.ClientOptions{URI: uri})
		if err != nil {
			return nil, nil, err
		}
		return mongostore.NewStore(client, database, collection), registry, nil
	}

	var (
		payload  string
		interval string
	)
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Periodically insert documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			dur, err := time.ParseDuration(interval)
			if err != nil {
				return fmt.Errorf("invalid interval: %w", err)
			}

			ctx := context.Background()
			store, registry, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer registry.CloseAll(ctx)

			ticker := time.NewTicker(dur)
			defer ticker.Stop()
			fmt.Printf("Inserting into %s.%s every %s\n", database, collection, dur)
			for range ticker.C {
				body, err := toolutil.BuildPayload(payload)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				var document bson.M
				if err := json.Unmarshal(body, &document); err != nil {
					document = bson.M{"data": string(body)}
				}
				id, err := store.InsertOne(ctx, document)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Insert error: %v\n", err)
				} else {
					fmt.Printf("Inserted document %s\n", id)
				}
			}
			return nil
		},
	}
	toolutil.AddPayloadFlag(sendCmd, &payload, "{json}")
	toolutil.AddIntervalFlag(sendCmd, &interval, "5s")

	var limit int64
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read the latest documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, registry, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer registry.CloseAll(ctx)

			documents, err := store.Find(ctx, nil, mongostore.FindOpts{
				Sort:  bson.D{{Key: "_id", Value: -1}},
				Limit: limit,
			})
			if err != nil {
				return err
			}
			for _, document := range documents {
				body, _ := json.Marshal(document)
				sections := []toolutil.MessageSection{
					{Title: "Collection", Items: []toolutil.KV{{Key: "Name", Value: database + "." + collection}}},
				}
				toolutil.PrintColoredMessage("MongoDB", sections, body)
			}
			fmt.Printf("%d document(s)\n", len(documents))
			return nil
		},
	}
	readCmd.Flags().Int64Var(&limit, "limit", 10, "Maximum number of documents to read")

	root.AddCommand(sendCmd, readCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
