package relational

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// InsertArgs contains all the arguments for Insert.
type InsertArgs struct {
	// Target table, optionally schema-qualified ("schema.table").
	Table string
	// Rows to insert. All rows must share the identical column set.
	Rows RowSet
	// Optional conflict-resolution key. When non-empty the statement appends
	// an ON CONFLICT ... DO UPDATE SET clause.
	UniqueColumns []string
	// Optional explicit SET expressions overriding the default
	// EXCLUDED-based assignments on conflict.
	ConflictUpdates map[string]string
}

// Insert writes a uniform row set into the target table with one batched
// parameterized statement inside a single transaction. Any row failing rolls
// back the whole call; there are no partial commits.
func Insert(ctx context.Context, mgr *Manager, args InsertArgs) error {
	if args.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrValidation)
	}

	columns, rows, err := args.Rows.Normalize()
	if err != nil {
		return err
	}

	schema, table := splitTableName(args.Table)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteTable(schema, table),
		quoteIdents(columns),
		placeholders(1, len(columns)),
	)
	if len(args.UniqueColumns) > 0 {
		query += buildConflictClause(args.UniqueColumns, columns, args.ConflictUpdates)
	}

	logger := mgr.logger.With("table", args.Table)
	logger.Debug("executing batched insert", "rows", len(rows), "shape", args.Rows.Shape())

	err = mgr.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(query, row...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: %s", ErrQuery, err)
		}
		return nil
	})
	if err != nil {
		logger.Error("batched insert failed", "error", err)
		return err
	}

	logger.Debug("batched insert committed", "rows", len(rows))
	return nil
}

// ExecQuery runs a single parameterized statement in its own transaction and
// optionally fetches the resulting rows as records.
func ExecQuery(ctx context.Context, mgr *Manager, query string, params []any, fetchResults bool) ([]Record, error) {
	var records []Record
	err := mgr.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if !fetchResults {
			if _, err := tx.Exec(ctx, query, params...); err != nil {
				return fmt.Errorf("%w: %s", ErrQuery, err)
			}
			return nil
		}
		rows, err := tx.Query(ctx, query, params...)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrQuery, err)
		}
		records, err = collectRecords(rows)
		return err
	})
	if err != nil {
		slog.Default().With("context", "PGSQL Manager").Error("query execution failed", "error", err)
		return nil, err
	}
	return records, nil
}

// collectRecords drains a row cursor into one Record per row.
func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrQuery, err)
		}
		rec := make(Record, len(fields))
		for i, fd := range fields {
			rec[fd.Name] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrQuery, err)
	}
	return records, nil
}
