package repository

import (
	"errors"
	"fmt"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/lib/pq"
)

const (
	codeUniqueViolation      pq.ErrorCode = "23505"
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
)

// ErrNoRowsAffected aborts a unit of work whose statement touched nothing.
var ErrNoRowsAffected = errors.New("no rows affected")

func pgCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// isRetryable reports errors after which re-running the whole transaction
// may succeed.
func isRetryable(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// persistence hides driver details behind core.ErrPersistence while keeping
// the cause for logs.
func persistence(op string, err error) error {
	return core.Wrap(core.KindPersistence, fmt.Errorf("%s: %w", op, err), "Internal server error")
}
