package engine

import "errors"

// Error kinds surfaced by the engine. Callers branch on these with errors.Is
// to decide between rendering a placeholder and reporting a failure.
var (
	// ErrSchemaAbsent means a required column or table does not exist in
	// this deployment's schema.
	ErrSchemaAbsent = errors.New("schema element absent")

	// ErrStorageUnavailable means a data or metadata query failed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUndefined means an operand was missing or a divisor was zero.
	// Distinct from a legitimate zero result.
	ErrUndefined = errors.New("value undefined")

	// ErrSettlementConflict means the trade was already settled; the
	// attempted settlement was rejected as a no-op.
	ErrSettlementConflict = errors.New("trade already settled")

	// ErrExposureExceedsCapital is returned by the available-funds policy
	// check when reserved exposure exceeds total capital and negative
	// available balances are not allowed.
	ErrExposureExceedsCapital = errors.New("reserved exposure exceeds total capital")
)
