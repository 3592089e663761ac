package utils

import (
	"errors"
	"fmt"
)

// AppError attaches the failing operation and a stable human-facing message
// to an underlying error. Unwrap keeps the chain intact, so sentinel checks
// through errors.Is still see the cause.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Msg
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError builds an AppError around err.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// Operation reports the operation recorded on err, or "" when the chain
// carries none.
func Operation(err error) string {
	var app *AppError
	if !errors.As(err, &app) {
		return ""
	}
	return app.Op
}
