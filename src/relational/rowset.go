package relational

import (
	"fmt"
	"sort"
)

// Record represents one row as a mapping from column name to value.
type Record map[string]any

// Shape tags the representation carried by a RowSet.
type Shape int

const (
	// ShapeRecords is a list of independent row mappings.
	ShapeRecords Shape = iota + 1
	// ShapeColumns is a mapping from column name to a vector of values, one
	// entry per row.
	ShapeColumns
	// ShapeFrame is a tabular frame with a fixed column order and N rows.
	ShapeFrame
)

func (s Shape) String() string {
	switch s {
	case ShapeRecords:
		return "records"
	case ShapeColumns:
		return "columns"
	case ShapeFrame:
		return "frame"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// RowSet is the closed union of the three input representations accepted by
// the insert, upsert and read engines. Build one with Records, ColumnValues
// or NewFrame; the zero value is empty and invalid.
type RowSet struct {
	shape   Shape
	records []Record
	columns []string
	rows    [][]any
	vectors map[string][]any
}

// Records builds a RowSet from a list of row mappings. Column sets may vary
// per row; the insert engine rejects heterogeneous sets at normalization.
func Records(rows ...Record) RowSet {
	return RowSet{shape: ShapeRecords, records: rows}
}

// ColumnValues builds a RowSet from column vectors. All vectors must have
// the same length; the mismatch is reported at normalization.
func ColumnValues(vectors map[string][]any) RowSet {
	return RowSet{shape: ShapeColumns, vectors: vectors}
}

// NewFrame builds a RowSet from an ordered column list and row tuples.
func NewFrame(columns []string, rows [][]any) RowSet {
	return RowSet{shape: ShapeFrame, columns: columns, rows: rows}
}

// Shape returns the representation tag.
func (rs RowSet) Shape() Shape {
	return rs.shape
}

// Len returns the number of rows.
func (rs RowSet) Len() int {
	switch rs.shape {
	case ShapeRecords:
		return len(rs.records)
	case ShapeColumns:
		for _, vec := range rs.vectors {
			return len(vec)
		}
		return 0
	case ShapeFrame:
		return len(rs.rows)
	}
	return 0
}

// Frame returns the frame representation. Valid only for ShapeFrame.
func (rs RowSet) Frame() (columns []string, rows [][]any) {
	return rs.columns, rs.rows
}

// RecordRows returns the record representation. Valid only for ShapeRecords.
func (rs RowSet) RecordRows() []Record {
	return rs.records
}

// Columns returns the column-vector representation. Valid only for
// ShapeColumns.
func (rs RowSet) Columns() map[string][]any {
	return rs.vectors
}

// Normalize resolves the row set into one ordered column list and one value
// tuple per row, the form consumed by the batched insert engine. Every row
// must share the identical column set; violations surface as ErrValidation.
func (rs RowSet) Normalize() ([]string, [][]any, error) {
	switch rs.shape {
	case ShapeRecords:
		return normalizeRecords(rs.records)
	case ShapeColumns:
		return normalizeVectors(rs.vectors)
	case ShapeFrame:
		if len(rs.columns) == 0 {
			return nil, nil, fmt.Errorf("%w: frame has no columns", ErrValidation)
		}
		for i, row := range rs.rows {
			if len(row) != len(rs.columns) {
				return nil, nil, fmt.Errorf("%w: frame row %d has %d values, expected %d", ErrValidation, i, len(row), len(rs.columns))
			}
		}
		return rs.columns, rs.rows, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown row set shape %s", ErrValidation, rs.shape)
}

// AsRecords converts the row set into one Record per row, preserving each
// record's own column set for the ShapeRecords case.
func (rs RowSet) AsRecords() ([]Record, error) {
	if rs.shape == ShapeRecords {
		if len(rs.records) == 0 {
			return nil, fmt.Errorf("%w: row set is empty", ErrValidation)
		}
		return rs.records, nil
	}
	columns, rows, err := rs.Normalize()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: row set is empty", ErrValidation)
	}
	records := make([]Record, len(rows))
	for i, row := range rows {
		rec := make(Record, len(columns))
		for j, col := range columns {
			rec[col] = row[j]
		}
		records[i] = rec
	}
	return records, nil
}

func normalizeRecords(records []Record) ([]string, [][]any, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: row set is empty", ErrValidation)
	}

	columns := recordColumns(records[0])
	for i, rec := range records[1:] {
		if !sameColumns(columns, rec) {
			return nil, nil, fmt.Errorf("%w: record %d has a different column set than record 0", ErrValidation, i+1)
		}
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = rec[col]
		}
		rows[i] = row
	}
	return columns, rows, nil
}

func normalizeVectors(vectors map[string][]any) ([]string, [][]any, error) {
	if len(vectors) == 0 {
		return nil, nil, fmt.Errorf("%w: row set is empty", ErrValidation)
	}

	columns := make([]string, 0, len(vectors))
	for col := range vectors {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	length := len(vectors[columns[0]])
	for _, col := range columns {
		if len(vectors[col]) != length {
			return nil, nil, fmt.Errorf("%w: column %q has %d values, expected %d", ErrValidation, col, len(vectors[col]), length)
		}
	}
	if length == 0 {
		return nil, nil, fmt.Errorf("%w: row set is empty", ErrValidation)
	}

	rows := make([][]any, length)
	for i := 0; i < length; i++ {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = vectors[col][i]
		}
		rows[i] = row
	}
	return columns, rows, nil
}

// recordColumns returns the sorted column names of a record. Sorting keeps
// statement construction deterministic across map iteration orders.
func recordColumns(rec Record) []string {
	columns := make([]string, 0, len(rec))
	for col := range rec {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func sameColumns(columns []string, rec Record) bool {
	if len(columns) != len(rec) {
		return false
	}
	for _, col := range columns {
		if _, ok := rec[col]; !ok {
			return false
		}
	}
	return true
}
