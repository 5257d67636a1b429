package relational

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// primaryKeyQuery resolves the columns of the primary index of a table by
// joining the index and attribute catalogs.
const primaryKeyQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid
AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = $1::regclass
AND i.indisprimary
`

// serialColumnsQuery finds columns whose default expression is a sequence
// generator call.
const serialColumnsQuery = `
SELECT c.column_name
FROM information_schema.columns c
JOIN pg_attrdef ad ON ad.adrelid = (c.table_schema || '.' || c.table_name)::regclass
AND ad.adnum = c.ordinal_position
WHERE c.table_name = $1
AND c.table_schema = $2
AND c.column_default LIKE 'nextval%'
`

// PrimaryKeyColumns returns the ordered column names forming the primary key
// of schema.table. A table without a primary key yields an empty list; a
// failed catalog query yields ErrQuery.
func PrimaryKeyColumns(ctx context.Context, mgr *Manager, table, schema string) ([]string, error) {
	var columns []string
	err := mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		exists, err := regclassExists(ctx, conn, schema, table)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		rows, err := conn.Query(ctx, primaryKeyQuery, schema+"."+table)
		if err != nil {
			return fmt.Errorf("%w: primary key lookup: %s", ErrQuery, err)
		}
		defer rows.Close()

		for rows.Next() {
			var col string
			if err := rows.Scan(&col); err != nil {
				return fmt.Errorf("%w: primary key lookup: %s", ErrQuery, err)
			}
			columns = append(columns, col)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: primary key lookup: %s", ErrQuery, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// SerialColumns returns the columns of schema.table whose default value is
// produced by an auto-incrementing sequence. A missing table or a table
// without serial columns yields an empty list.
func SerialColumns(ctx context.Context, mgr *Manager, table, schema string) ([]string, error) {
	var columns []string
	err := mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, serialColumnsQuery, table, schema)
		if err != nil {
			return fmt.Errorf("%w: serial column lookup: %s", ErrQuery, err)
		}
		defer rows.Close()

		for rows.Next() {
			var col string
			if err := rows.Scan(&col); err != nil {
				return fmt.Errorf("%w: serial column lookup: %s", ErrQuery, err)
			}
			columns = append(columns, col)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: serial column lookup: %s", ErrQuery, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// regclassExists reports whether schema.table resolves to a relation. The
// primary key query casts its argument to regclass, which raises for a
// missing table; a missing table must instead yield an empty result.
func regclassExists(ctx context.Context, conn *pgx.Conn, schema, table string) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`,
		schema+"."+table,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: relation lookup: %s", ErrQuery, err)
	}
	return exists, nil
}
