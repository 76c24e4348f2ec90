package accesslog

import "context"

// Store defines persistence operations for the access audit log.
// The interface is deliberately append-and-read only.
type Store interface {
	// AppendLogEntry persists a new entry.
	AppendLogEntry(ctx context.Context, e *Entry) error

	// ListLogEntries returns entries matching the filter, newest first.
	ListLogEntries(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountLogEntries returns the number of entries matching the filter.
	CountLogEntries(ctx context.Context, filter *QueryFilter) (int64, error)
}
