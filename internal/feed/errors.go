package feed

import "fmt"

// TransientFeedError reports a failed snapshot or poll. Nothing was
// delivered for the failed attempt, so no view state needs rolling back.
type TransientFeedError struct {
	Collection string
	Err        error
}

func (e *TransientFeedError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.Collection, e.Err)
}

func (e *TransientFeedError) Unwrap() error { return e.Err }

// WriteFailure reports a rejected add, update or delete.
type WriteFailure struct {
	Op  string // "add", "update", "delete"
	ID  string // empty for add
	Err error
}

func (e *WriteFailure) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.ID, e.Err)
}

func (e *WriteFailure) Unwrap() error { return e.Err }
