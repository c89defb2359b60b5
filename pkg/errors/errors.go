package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure so the transport layer can pick a status.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindDuplicateResource
	KindInvalidArgument
)

// Sentinels for errors.Is checks against an AppError of the matching kind.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateResource = errors.New("duplicate resource")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// AppError is a business-rule failure raised where it is detected and passed
// up unchanged to the handler.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *AppError) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == ErrNotFound
	case KindDuplicateResource:
		return target == ErrDuplicateResource
	case KindInvalidArgument:
		return target == ErrInvalidArgument
	}
	return false
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Duplicate builds a KindDuplicateResource error wrapping the storage cause.
func Duplicate(cause error, format string, args ...any) error {
	return &AppError{Kind: KindDuplicateResource, Message: fmt.Sprintf(format, args...), Err: cause}
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(format string, args ...any) error {
	return &AppError{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err, or 0 for unexpected failures.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}
