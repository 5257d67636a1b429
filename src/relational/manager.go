package relational

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnParams holds the PostgreSQL connection parameters. Immutable after
// construction; owned by the Manager or Engine built from it.
type ConnParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// URI renders the parameters as a postgres:// connection string.
func (p ConnParams) URI() string {
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(p.User),
		url.QueryEscape(p.Password),
		p.Host, p.Port, p.Database, ssl,
	)
}

// Manager produces a connection for exactly one unit of work and guarantees
// its release on every exit path.
type Manager struct {
	params ConnParams
	logger *slog.Logger
}

// NewManager creates a Manager bound to the given connection parameters.
func NewManager(params ConnParams) *Manager {
	return &Manager{
		params: params,
		logger: slog.Default().With("context", "PGSQL Manager"),
	}
}

// Params returns a copy of the construction-time connection parameters.
func (m *Manager) Params() ConnParams {
	return m.params
}

// WithConn acquires a connection, runs fn and closes the connection
// regardless of fn's outcome. A failed handshake surfaces as ErrConnection.
func (m *Manager) WithConn(ctx context.Context, fn func(ctx context.Context, conn *pgx.Conn) error) error {
	conn, err := pgx.Connect(ctx, m.params.URI())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConnection, err)
	}
	m.logger.Debug("connection to PostgreSQL established", "host", m.params.Host, "database", m.params.Database)
	defer func() {
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			m.logger.Warn("failed to close PostgreSQL connection", "error", cerr)
		}
	}()
	return fn(ctx, conn)
}

// WithTx acquires a connection, opens a transaction and runs fn inside it.
// The transaction commits when fn returns nil and rolls back otherwise;
// the connection is released on every exit path.
func (m *Manager) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return m.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("%w: begin transaction: %s", ErrQuery, err)
		}
		defer func() {
			// No-op after a successful commit.
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}()
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("%w: commit transaction: %s", ErrQuery, err)
		}
		return nil
	})
}

// EngineOptions tunes the pooled engine.
type EngineOptions struct {
	MaxConns int32
	MinConns int32
}

// Engine is the long-lived, shared pool counterpart of Manager. Acquisition,
// execution and release all suspend on the caller's context, which makes the
// engine safe for concurrent use.
type Engine struct {
	params ConnParams
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewEngine creates a pooled engine from the given parameters. Pool creation
// validates the configuration but does not dial; use CheckConnection to probe
// reachability.
func NewEngine(ctx context.Context, params ConnParams, opts EngineOptions) (*Engine, error) {
	cfg, err := pgxpool.ParseConfig(params.URI())
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection string: %s", ErrConnection, err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create connection pool: %s", ErrConnection, err)
	}

	logger := slog.Default().With("context", "PGSQL Engine")
	logger.Debug("engine created", "host", params.Host, "database", params.Database, "maxConns", cfg.MaxConns)

	return &Engine{params: params, pool: pool, logger: logger}, nil
}

// Pool exposes the underlying pgx pool for callers that need driver-level
// access (introspection queries, manual tools).
func (e *Engine) Pool() *pgxpool.Pool {
	return e.pool
}

// WithSession acquires a pooled connection for the duration of fn and
// releases it on every exit path.
func (e *Engine) WithSession(ctx context.Context, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConnection, err)
	}
	defer conn.Release()
	return fn(ctx, conn)
}

// CheckConnection issues a trivial round-trip query and reports whether the
// database answered. It never returns an error for an unreachable database,
// only logs it.
func (e *Engine) CheckConnection(ctx context.Context) bool {
	var one int
	if err := e.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		e.logger.Error("database connection check failed", "error", err)
		return false
	}
	return true
}

// Close disposes the pool and all of its connections.
func (e *Engine) Close() {
	e.pool.Close()
}
