package relational

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Column describes one column of a PostgreSQL table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
	Primary  bool
}

// columnCache stores column metadata per table with expiration, to avoid
// repeated catalog queries within a short window.
var (
	columnCache    = make(map[string]columnCacheEntry)
	columnCacheMu  sync.RWMutex
	columnCacheTTL = 5 * time.Minute
)

type columnCacheEntry struct {
	columns   []Column
	expiresAt time.Time
}

const tableColumnsQuery = `
SELECT c.column_name, c.data_type, c.is_nullable, c.column_default, (
	SELECT tc.constraint_type
	 FROM information_schema.key_column_usage kcu
	 JOIN information_schema.table_constraints tc
	   ON tc.constraint_name = kcu.constraint_name
	  AND tc.table_name = c.table_name
	WHERE kcu.column_name = c.column_name
	  AND kcu.table_name = c.table_name
	  AND tc.constraint_type = 'PRIMARY KEY'
	LIMIT 1
) AS column_key
FROM information_schema.columns c
WHERE c.table_name = $1 AND c.table_schema = $2
ORDER BY c.ordinal_position
`

// TableColumns retrieves the columns of schema.table from the catalog,
// using an in-memory cache with a 5-minute window. A missing table yields
// an empty result.
func TableColumns(ctx context.Context, mgr *Manager, table, schema string) ([]Column, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: table name is required", ErrValidation)
	}

	key := schema + "." + table
	now := time.Now()

	columnCacheMu.RLock()
	entry, found := columnCache[key]
	columnCacheMu.RUnlock()
	if found && now.Before(entry.expiresAt) {
		return entry.columns, nil
	}

	var columns []Column
	err := mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, tableColumnsQuery, table, schema)
		if err != nil {
			return fmt.Errorf("%w: column lookup: %s", ErrQuery, err)
		}
		defer rows.Close()

		for rows.Next() {
			var col Column
			var nullable, colDefault, colKey *string
			if err := rows.Scan(&col.Name, &col.Type, &nullable, &colDefault, &colKey); err != nil {
				return fmt.Errorf("%w: column lookup: %s", ErrQuery, err)
			}
			col.Nullable = nullable != nil && *nullable == "YES"
			if colDefault != nil {
				col.Default = *colDefault
			}
			col.Primary = colKey != nil && *colKey == "PRIMARY KEY"
			columns = append(columns, col)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	columnCacheMu.Lock()
	columnCache[key] = columnCacheEntry{columns: columns, expiresAt: now.Add(columnCacheTTL)}
	columnCacheMu.Unlock()

	return columns, nil
}

// InvalidateTableColumns drops the cached metadata for schema.table.
func InvalidateTableColumns(table, schema string) {
	columnCacheMu.Lock()
	delete(columnCache, schema+"."+table)
	columnCacheMu.Unlock()
}

// TableExists reports whether schema.table exists.
func TableExists(ctx context.Context, mgr *Manager, table, schema string) (bool, error) {
	if table == "" {
		return false, fmt.Errorf("%w: table name is required", ErrValidation)
	}
	var exists bool
	err := mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = $1 AND table_schema = $2
			)
		`, table, schema).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: table existence check: %s", ErrQuery, err)
		}
		return nil
	})
	return exists, err
}

// ListTables returns the table names of a schema, optionally filtered to an
// exact (case-insensitive) name.
func ListTables(ctx context.Context, mgr *Manager, schema, filter string) ([]string, error) {
	var tables []string
	err := mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT table_name FROM information_schema.tables
			WHERE table_schema = $1 AND table_type = 'BASE TABLE'
			ORDER BY table_name
		`, schema)
		if err != nil {
			return fmt.Errorf("%w: table listing: %s", ErrQuery, err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("%w: table listing: %s", ErrQuery, err)
			}
			if filter == "" || strings.EqualFold(filter, name) {
				tables = append(tables, name)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// CreateDatabase creates a new database owned by the connection user if it
// does not already exist. Returns true when the database exists afterwards.
func CreateDatabase(ctx context.Context, mgr *Manager, name string) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("%w: database name is required", ErrValidation)
	}
	var created bool
	err := mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		var exists bool
		err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: database existence check: %s", ErrQuery, err)
		}
		if exists {
			created = true
			return nil
		}
		// CREATE DATABASE cannot be parameterized; the identifier is quoted.
		if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s ENCODING 'UTF8'", quoteIdent(name))); err != nil {
			return fmt.Errorf("%w: create database: %s", ErrQuery, err)
		}
		created = true
		return nil
	})
	return created, err
}
