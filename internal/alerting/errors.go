package alerting

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an unknown alert id.
	ErrNotFound = errors.New("alert not found")
	// ErrNotActive reports a cancel on an alert that already fired or was cancelled.
	ErrNotActive = errors.New("alert is not active")
)

// ValidationError rejects user input. The ledger is left unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CapacityError is returned by Add when the ledger already holds Limit records.
type CapacityError struct {
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("予約は最大%d件です", e.Limit)
}
