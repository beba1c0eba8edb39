package app

import "errors"

// ErrImportBlocked and related errors describe pipeline and import failures.
var (
	ErrImportBlocked     = errors.New("import blocked by validation issues")
	ErrEmptyBatch        = errors.New("batch has no days")
	ErrUnresolvedProject = errors.New("project path not resolved")
	ErrCorruptHierarchy  = errors.New("corrupt project hierarchy")
	ErrInvalidDateRange  = errors.New("invalid date range")
)
