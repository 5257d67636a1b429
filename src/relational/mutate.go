package relational

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Delete removes the rows matching the condition map and returns the number
// of rows deleted. Zero matches is a valid outcome, not an error.
func Delete(ctx context.Context, mgr *Manager, table string, cond Condition) (int64, error) {
	if table == "" {
		return 0, fmt.Errorf("%w: table name is required", ErrValidation)
	}

	where, values, err := buildWhereClause(cond, 0)
	if err != nil {
		return 0, err
	}

	schema, name := splitTableName(table)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteTable(schema, name), where)

	var affected int64
	err = mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, query, values...)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrQuery, err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		mgr.logger.Error("delete failed", "table", table, "error", err)
		return 0, err
	}

	mgr.logger.Debug("delete executed", "table", table, "rows", affected)
	return affected, nil
}

// Update assigns the given column values on every row matching the condition
// map and returns the number of rows affected.
func Update(ctx context.Context, mgr *Manager, table string, updates map[string]any, cond Condition) (int64, error) {
	if table == "" {
		return 0, fmt.Errorf("%w: table name is required", ErrValidation)
	}
	if len(updates) == 0 {
		return 0, fmt.Errorf("%w: update set is empty", ErrValidation)
	}

	updateColumns := make([]string, 0, len(updates))
	for col := range updates {
		updateColumns = append(updateColumns, col)
	}
	sort.Strings(updateColumns)

	var (
		assignments []string
		values      []any
	)
	for _, col := range updateColumns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", quoteIdent(col), len(values)+1))
		values = append(values, updates[col])
	}

	where, condValues, err := buildWhereClause(cond, len(values))
	if err != nil {
		return 0, err
	}
	values = append(values, condValues...)

	schema, name := splitTableName(table)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteTable(schema, name),
		strings.Join(assignments, ", "),
		where,
	)

	var affected int64
	err = mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, query, values...)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrQuery, err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		mgr.logger.Error("update failed", "table", table, "error", err)
		return 0, err
	}

	mgr.logger.Debug("update executed", "table", table, "rows", affected)
	return affected, nil
}
