package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/bakkyhq/bakky/src/config"
	"github.com/bakkyhq/bakky/src/mongostore"
	"github.com/bakkyhq/bakky/src/rediscache"
	"github.com/bakkyhq/bakky/src/relational"
	"github.com/bakkyhq/bakky/src/taskqueue"
)

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	w := os.Stdout

	// Set global logger with custom options
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}),
	))

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Reconfigure the logger with the configured level
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      logLevel(cfg.Log.Level),
			TimeFormat: time.Kitchen,
		}),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// PostgreSQL
	registry := relational.NewRegistry()
	defer registry.CloseAll()

	params := relational.ConnParams{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
	}
	engine, err := registry.Engine(ctx, params, relational.EngineOptions{
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		slog.Error("failed to create PostgreSQL engine", "error", err)
		os.Exit(1)
	}
	if !engine.CheckConnection(ctx) {
		slog.Error("PostgreSQL connection check failed", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		os.Exit(1)
	}
	slog.Info("PostgreSQL connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	// MongoDB
	mongoRegistry := mongostore.NewRegistry()
	defer mongoRegistry.CloseAll(context.Background())

	mongoClient, err := mongoRegistry.Client(ctx, mongostore.ClientOptions{
		URI:            cfg.Mongo.URI,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		MinPoolSize:    cfg.Mongo.MinPoolSize,
		ConnectTimeout: time.Duration(cfg.Mongo.ConnectTimeout) * time.Millisecond,
		RetryWrites:    cfg.Mongo.RetryWrites,
		RetryReads:     cfg.Mongo.RetryReads,
	})
	if err != nil {
		slog.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	if !mongoRegistry.CheckConnection(ctx, mongoClient) {
		slog.Error("MongoDB connection check failed", "uri", cfg.Mongo.URI)
		os.Exit(1)
	}
	slog.Info("MongoDB connected", "database", cfg.Mongo.Database)

	// Redis
	redisClient, err := rediscache.Connect(ctx, rediscache.Options{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	cache := rediscache.NewCache(redisClient, time.Duration(cfg.Redis.DefaultTTL)*time.Second)
	defer cache.Close()
	slog.Info("Redis connected", "address", cfg.Redis.Address)

	// Task queue
	queue, err := taskqueue.NewQueue(taskqueue.Options{
		URL:     cfg.Tasks.URL,
		Subject: cfg.Tasks.Subject,
		Queue:   cfg.Tasks.Queue,
	})
	if err != nil {
		slog.Error("failed to connect to task queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	slog.Info("bakky started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
}
