package db

import "errors"

// Sentinel errors for storage operations.
var (
	ErrKeyNotFound  = errors.New("db: key not found")
	ErrDuplicateKey = errors.New("db: duplicate key")
)

// Op names used for error context and operation metrics.
const (
	OpInsert         = "insert"
	OpFind           = "find"
	OpCount          = "count"
	OpReplace        = "replace"
	OpUpdate         = "update"
	OpBulkWrite      = "bulk_write"
	OpDelete         = "delete"
	OpAggregate      = "aggregate"
	OpCreateIndex    = "create_index"
	OpSearchIndex    = "search_index_create"
	OpSearchIndexLs  = "search_index_list"
	OpSearchIndexDel = "search_index_drop"
	OpTransaction    = "transaction"
	OpPing           = "ping"

	OpGet = "GET"
	OpSet = "SET"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
