package relational

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ReadArgs contains all the arguments for Read.
type ReadArgs struct {
	// Query is the parameterized SQL text to execute.
	Query string
	// Params binds the query placeholders.
	Params []any
	// Shape selects the returned representation.
	Shape Shape
}

// Read executes a query and returns the result in the caller-chosen
// representation: a frame for bulk columnar access, records for row
// mappings, column vectors for columnar mappings. An unrecognized shape
// fails with ErrValidation before touching the database.
func Read(ctx context.Context, mgr *Manager, args ReadArgs) (RowSet, error) {
	switch args.Shape {
	case ShapeRecords, ShapeColumns, ShapeFrame:
	default:
		return RowSet{}, fmt.Errorf("%w: unknown return shape %s", ErrValidation, args.Shape)
	}

	var result RowSet
	err := mgr.WithConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, args.Query, args.Params...)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrQuery, err)
		}
		defer rows.Close()

		columns := make([]string, len(rows.FieldDescriptions()))
		for i, fd := range rows.FieldDescriptions() {
			columns[i] = fd.Name
		}

		var tuples [][]any
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return fmt.Errorf("%w: %s", ErrQuery, err)
			}
			row := make([]any, len(values))
			copy(row, values)
			tuples = append(tuples, row)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: %s", ErrQuery, err)
		}

		result = shapeResult(args.Shape, columns, tuples)
		return nil
	})
	if err != nil {
		return RowSet{}, err
	}
	return result, nil
}

// shapeResult converts the fetched columns and tuples into the requested
// representation.
func shapeResult(shape Shape, columns []string, tuples [][]any) RowSet {
	switch shape {
	case ShapeRecords:
		records := make([]Record, len(tuples))
		for i, row := range tuples {
			rec := make(Record, len(columns))
			for j, col := range columns {
				rec[col] = row[j]
			}
			records[i] = rec
		}
		return Records(records...)
	case ShapeColumns:
		vectors := make(map[string][]any, len(columns))
		for j, col := range columns {
			vec := make([]any, len(tuples))
			for i, row := range tuples {
				vec[i] = row[j]
			}
			vectors[col] = vec
		}
		return ColumnValues(vectors)
	default:
		return NewFrame(columns, tuples)
	}
}
