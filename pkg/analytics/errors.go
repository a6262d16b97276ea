package analytics

import (
	"errors"
	"fmt"
)

// ErrDatabaseUnavailable is returned when the relational store is not ready
// or a report could not be computed before the request deadline.
var ErrDatabaseUnavailable = errors.New("database not connected")

// QueryError reports the failure of one query in the battery. The whole
// report is abandoned when it occurs.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
