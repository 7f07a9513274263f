package store

import (
	"fmt"
	"time"
)

// QuerySyntaxError is returned for malformed SPARQL, carrying the byte
// offset of the offending token.
type QuerySyntaxError struct {
	Pos int
	Msg string
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at offset %d: %s", e.Pos, e.Msg)
}

// QueryTimeoutError is returned when a query exceeds its deadline.
type QueryTimeoutError struct {
	Elapsed time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("query timed out after %s", e.Elapsed.Round(time.Millisecond))
}
