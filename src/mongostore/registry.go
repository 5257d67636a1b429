package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ClientOptions holds the connection settings for a MongoDB deployment.
type ClientOptions struct {
	URI            string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
	RetryWrites    bool
	RetryReads     bool
}

func (o ClientOptions) build() *options.ClientOptions {
	timeout := o.ConnectTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	opts := options.Client().
		ApplyURI(o.URI).
		SetConnectTimeout(timeout).
		SetRetryWrites(o.RetryWrites).
		SetRetryReads(o.RetryReads)
	if o.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		opts.SetMinPoolSize(o.MinPoolSize)
	}
	return opts
}

// Registry caches MongoDB clients keyed by connection URI, so repeated
// requests for the same deployment share one client and its pool.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*mongo.Client
	logger  *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*mongo.Client),
		logger:  slog.Default().With("context", "MongoDB Registry"),
	}
}

// Client returns the cached client for the given options, connecting and
// pinging the deployment on first use.
func (r *Registry) Client(ctx context.Context, opts ClientOptions) (*mongo.Client, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, found := r.clients[opts.URI]; found {
		return client, nil
	}

	client, err := mongo.Connect(ctx, opts.build())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		if disconnectErr := client.Disconnect(ctx); disconnectErr != nil {
			r.logger.Warn("failed to disconnect MongoDB client after ping error", "err", disconnectErr)
		}
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	r.clients[opts.URI] = client
	r.logger.Info("MongoDB client connected", "uri", opts.URI)
	return client, nil
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// CheckConnection reports whether the deployment behind the client answers a
// ping. It never returns an error.
func (r *Registry) CheckConnection(ctx context.Context, client *mongo.Client) bool {
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		r.logger.Error("MongoDB connection check failed", "err", err)
		return false
	}
	return true
}

// CloseAll disconnects every cached client and clears the cache.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uri, client := range r.clients {
		if err := client.Disconnect(ctx); err != nil {
			r.logger.Warn("error disconnecting MongoDB client", "uri", uri, "err", err)
		}
	}
	r.clients = make(map[string]*mongo.Client)
}
