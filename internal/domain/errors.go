package domain

import (
	"errors"
	"fmt"
)

// ParseError is returned for command text that does not match the grammar.
// Pos is the byte offset of the offending token in Input.
type ParseError struct {
	Input   string
	Pos     int
	Message string
}

func (e ParseError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("%s: \"%s\"", e.Message, e.Input)
	}
	return fmt.Sprintf("%s at position %d: \"%s\"", e.Message, e.Pos+1, e.Input)
}

// ValidationError rejects a whole operation before anything is traded.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) error {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// BrokerageError is scoped to a single brokerage call.
type BrokerageError struct {
	Op     string
	Symbol string
	Err    error
}

func (e BrokerageError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Symbol, e.Err)
}

func (e BrokerageError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var n NotFoundError
	return errors.As(err, &n)
}

func IsParse(err error) bool {
	var p ParseError
	return errors.As(err, &p)
}

func IsBrokerage(err error) bool {
	var b BrokerageError
	return errors.As(err, &b)
}
