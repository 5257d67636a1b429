package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// UpsertArgs contains all the arguments for Upsert.
type UpsertArgs struct {
	// Target table, optionally schema-qualified ("schema.table").
	Table string
	// Rows to insert or update. Column sets may vary per row.
	Rows RowSet
	// Conflict-resolution key. When empty it is derived from the table's
	// primary key.
	UniqueColumns []string
	// ForceUpdate updates the existing row on conflict instead of failing
	// the call.
	ForceUpdate bool
}

// Upsert inserts each row, or updates it in place when its unique-column
// values already exist. The whole batch runs inside one transaction: any
// unrecovered error rolls back every row.
//
// A conflict is detected through the zero-rows contract: the probe insert
// uses ON CONFLICT DO NOTHING RETURNING *, and an empty result is the sole
// conflict signal. Serial sequences are resynced to MAX(column)+1 before
// each row attempt so externally-inserted rows cannot leave the sequence
// stale.
func Upsert(ctx context.Context, mgr *Manager, args UpsertArgs) error {
	if args.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrValidation)
	}

	records, err := args.Rows.AsRecords()
	if err != nil {
		return err
	}

	schema, table := splitTableName(args.Table)

	callerUnique := args.UniqueColumns
	unique := callerUnique
	if len(unique) == 0 {
		unique, err = PrimaryKeyColumns(ctx, mgr, table, schema)
		if err != nil {
			return err
		}
	}
	if args.ForceUpdate && len(unique) == 0 {
		return fmt.Errorf("%w: no unique columns given and table %s.%s has no primary key", ErrValidation, schema, table)
	}

	serials, err := SerialColumns(ctx, mgr, table, schema)
	if err != nil {
		return err
	}

	logger := mgr.logger.With("table", args.Table)
	logger.Debug("starting upsert", "rows", len(records), "uniqueColumns", unique, "forceUpdate", args.ForceUpdate)

	return mgr.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for i, rec := range records {
			if err := upsertRow(ctx, tx, upsertRowArgs{
				schema:       schema,
				table:        table,
				record:       rec,
				unique:       unique,
				callerUnique: callerUnique,
				serials:      serials,
				forceUpdate:  args.ForceUpdate,
			}); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		logger.Debug("upsert committed", "rows", len(records))
		return nil
	})
}

type upsertRowArgs struct {
	schema       string
	table        string
	record       Record
	unique       []string
	callerUnique []string
	serials      []string
	forceUpdate  bool
}

func upsertRow(ctx context.Context, tx pgx.Tx, args upsertRowArgs) error {
	columns := recordColumns(args.record)

	// A caller-supplied unique set must be fully present in the row.
	for _, col := range args.callerUnique {
		if _, ok := args.record[col]; !ok {
			return fmt.Errorf("%w: unique column %q not found in the row data", ErrValidation, col)
		}
	}

	if err := resetSerialSequences(ctx, tx, args.schema, args.table, args.serials); err != nil {
		return err
	}

	values := make([]any, len(columns))
	for i, col := range columns {
		values[i] = args.record[col]
	}

	// Probe insert. Zero returned rows is the conflict signal, no
	// driver-level error is expected for a plain unique violation.
	probe := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING RETURNING *",
		quoteTable(args.schema, args.table),
		quoteIdents(columns),
		placeholders(1, len(columns)),
	)
	rows, err := tx.Query(ctx, probe, values...)
	if err != nil {
		if isUniqueViolation(err) {
			return resolveConflict(ctx, tx, args, columns, values)
		}
		return fmt.Errorf("%w: %s", ErrQuery, err)
	}
	inserted, err := collectRecords(rows)
	if err != nil {
		if isUniqueViolation(err) {
			return resolveConflict(ctx, tx, args, columns, values)
		}
		return err
	}
	if len(inserted) == 0 {
		return resolveConflict(ctx, tx, args, columns, values)
	}
	return nil
}

// resolveConflict handles the CONFLICT_DETECTED state: with forceUpdate an
// explicit conflict-update insert replaces the non-unique columns, otherwise
// the whole call fails.
func resolveConflict(ctx context.Context, tx pgx.Tx, args upsertRowArgs, columns []string, values []any) error {
	if !args.forceUpdate {
		return fmt.Errorf("%w: unique constraint violation on %s.%s", ErrConflict, args.schema, args.table)
	}
	if len(args.unique) == 0 {
		return fmt.Errorf("%w: conflict detected but no unique columns are available", ErrValidation)
	}

	// Serial columns absent from the row get DEFAULT placeholders so the
	// resynced sequence assigns their values.
	var absentSerials []string
	for _, col := range args.serials {
		if _, ok := args.record[col]; !ok {
			absentSerials = append(absentSerials, col)
		}
	}

	allColumns := append(append([]string{}, columns...), absentSerials...)
	valueParts := []string{placeholders(1, len(columns))}
	for range absentSerials {
		valueParts = append(valueParts, "DEFAULT")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s",
		quoteTable(args.schema, args.table),
		quoteIdents(allColumns),
		strings.Join(valueParts, ", "),
		buildConflictClause(args.unique, columns, nil),
	)
	if _, err := tx.Exec(ctx, query, values...); err != nil {
		return fmt.Errorf("%w: conflict update: %s", ErrQuery, err)
	}
	return nil
}

// resetSerialSequences resyncs every serial column's backing sequence to
// MAX(column)+1. Idempotent; runs before each row attempt.
func resetSerialSequences(ctx context.Context, tx pgx.Tx, schema, table string, serials []string) error {
	for _, col := range serials {
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence($1, $2), (SELECT COALESCE(MAX(%s), 0) FROM %s) + 1, false)",
			quoteIdent(col),
			quoteTable(schema, table),
		)
		if _, err := tx.Exec(ctx, query, schema+"."+table, col); err != nil {
			return fmt.Errorf("%w: reset sequence for %s: %s", ErrQuery, col, err)
		}
	}
	return nil
}
