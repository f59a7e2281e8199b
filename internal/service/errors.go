package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrDataSource      = errors.New("data source error")
	ErrUnknownStrategy = errors.New("unknown recommendation type")
)

// InputError describes a rejected request field. It matches ErrInvalidInput
// under errors.Is.
type InputError struct {
	Field   string
	Message string
}

func (e InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidField(field, format string, args ...interface{}) error {
	return InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func dataSourceError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrDataSource, op, err)
}
