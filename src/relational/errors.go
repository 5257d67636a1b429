package relational

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds surfaced by this package. Callers match them with errors.Is;
// the wrapped chain keeps the original driver error text for diagnostics.
var (
	// ErrConnection means the database could not be reached or authenticated.
	// Never retried internally.
	ErrConnection = errors.New("connection error")

	// ErrValidation means the input row set or arguments are malformed
	// (heterogeneous columns, missing unique columns, unknown shape).
	ErrValidation = errors.New("validation error")

	// ErrConflict means a unique-constraint conflict was detected while
	// ForceUpdate was disabled. Recoverable by retrying with ForceUpdate.
	ErrConflict = errors.New("conflict error")

	// ErrQuery means the driver reported a failure during execution. The
	// surrounding transaction has been rolled back.
	ErrQuery = errors.New("query error")
)

// uniqueViolationCode is the PostgreSQL error code for unique_violation.
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a driver-level unique-constraint
// violation. The upsert path normally detects conflicts via the zero-rows
// contract instead, this covers races between the probe and the fallback.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}
