package scd

import "errors"

var (
	// ErrSchemaConflict indicates the declared table schema disagrees with a
	// table that already exists in the warehouse. This is a fatal
	// configuration error; schemas are never migrated automatically.
	ErrSchemaConflict = errors.New("declared schema conflicts with existing table")

	// ErrTransactionFailure indicates a batched statement failed and the
	// phase it belonged to was rolled back entirely.
	ErrTransactionFailure = errors.New("transaction phase failed")

	// ErrInvariantViolation indicates more than one active row was found for
	// a single natural key. Silently picking one could mask an earlier bug,
	// so classification refuses to proceed.
	ErrInvariantViolation = errors.New("multiple active rows for natural key")

	// ErrInputShape indicates the candidate snapshot is malformed: a missing
	// or null natural key, a duplicated natural key, or a missing business
	// column. Rejected before classification begins.
	ErrInputShape = errors.New("malformed candidate snapshot")
)
