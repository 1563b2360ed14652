package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRowsAffected means a write touched zero rows even though the row
	// existed moments before. Callers must not retry it blindly.
	ErrNoRowsAffected = errors.New("no rows affected")
)

// QueryError wraps a transport or backend failure. It is safe to retry;
// timeouts are classified here rather than as "no such order".
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func queryError(op string, err error) error {
	return &QueryError{Op: op, Err: err}
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
