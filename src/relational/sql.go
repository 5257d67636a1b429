package relational

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// splitTableName splits an optionally schema-qualified table name on the
// first dot. The default schema is "public".
func splitTableName(table string) (schema, name string) {
	if idx := strings.Index(table, "."); idx >= 0 {
		return table[:idx], table[idx+1:]
	}
	return "public", table
}

// quoteIdent quotes a single identifier for safe interpolation.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// quoteTable quotes a schema-qualified table name.
func quoteTable(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// quoteIdents quotes a list of identifiers and joins them with commas.
func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// placeholders renders $start..$start+n-1.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

// buildConflictClause renders the ON CONFLICT ... DO UPDATE SET clause for
// an insert. Columns outside the unique set are assigned from EXCLUDED;
// caller-supplied expressions in updates override the default assignment
// set entirely. The returned clause starts with a leading space.
func buildConflictClause(uniqueColumns, columns []string, updates map[string]string) string {
	var assignments []string
	if len(updates) > 0 {
		cols := make([]string, 0, len(updates))
		for col := range updates {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			assignments = append(assignments, fmt.Sprintf("%s = %s", quoteIdent(col), updates[col]))
		}
	} else {
		unique := make(map[string]struct{}, len(uniqueColumns))
		for _, col := range uniqueColumns {
			unique[col] = struct{}{}
		}
		for _, col := range columns {
			if _, ok := unique[col]; ok {
				continue
			}
			assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(col), quoteIdent(col)))
		}
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", quoteIdents(uniqueColumns), strings.Join(assignments, ", "))
}

// Condition maps column names to either a scalar (rendered as "= $n") or a
// slice of values (rendered as "IN ($n, ...)"). All entries are ANDed.
type Condition map[string]any

// buildWhereClause renders the WHERE clause body and its bound values.
// Placeholder numbering starts after offset already-bound values. Columns
// are processed in sorted order so statements are deterministic.
func buildWhereClause(cond Condition, offset int) (string, []any, error) {
	if len(cond) == 0 {
		return "", nil, fmt.Errorf("%w: condition is empty", ErrValidation)
	}

	columns := make([]string, 0, len(cond))
	for col := range cond {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var (
		parts  []string
		values []any
	)
	for _, col := range columns {
		switch v := cond[col].(type) {
		case []any:
			if len(v) == 0 {
				return "", nil, fmt.Errorf("%w: condition %q has an empty value list", ErrValidation, col)
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", quoteIdent(col), placeholders(offset+len(values)+1, len(v))))
			values = append(values, v...)
		default:
			parts = append(parts, fmt.Sprintf("%s = $%d", quoteIdent(col), offset+len(values)+1))
			values = append(values, v)
		}
	}
	return strings.Join(parts, " AND "), values, nil
}
