package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is matched by every argument decoding failure.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownMethod is returned for method names outside the channel's set.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrNotImplemented is what a caller sees when the host replied NotImplemented.
	ErrNotImplemented = errors.New("method not implemented")
	// ErrAlreadyReplied is returned by a sink that has already been written.
	ErrAlreadyReplied = errors.New("result already submitted")
	// ErrResultTooLarge is returned when a result would not fit in one reply.
	ErrResultTooLarge = errors.New("result too large")
)

// Kind classifies a failed call.
type Kind int

const (
	KindMissingArgument Kind = iota + 1
	KindArgumentShapeMismatch
	KindUnrecognizedMethod
	KindResultTooLarge
)

// Error codes written to the result sink.
const (
	CodeMissingArgument       = "missing_argument"
	CodeArgumentShapeMismatch = "argument_shape_mismatch"
	CodeUnrecognizedMethod    = "unrecognized_method"
	CodeResultTooLarge        = "result_too_large"
)

func (k Kind) String() string {
	switch k {
	case KindMissingArgument:
		return "MissingArgument"
	case KindArgumentShapeMismatch:
		return "ArgumentShapeMismatch"
	case KindUnrecognizedMethod:
		return "UnrecognizedMethod"
	case KindResultTooLarge:
		return "ResultTooLarge"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code is the wire code reported for the kind.
func (k Kind) Code() string {
	switch k {
	case KindMissingArgument:
		return CodeMissingArgument
	case KindArgumentShapeMismatch:
		return CodeArgumentShapeMismatch
	case KindUnrecognizedMethod:
		return CodeUnrecognizedMethod
	case KindResultTooLarge:
		return CodeResultTooLarge
	}
	return ""
}

// KindFromCode is the inverse of Kind.Code. Unknown codes return 0.
func KindFromCode(code string) Kind {
	switch code {
	case CodeMissingArgument:
		return KindMissingArgument
	case CodeArgumentShapeMismatch:
		return KindArgumentShapeMismatch
	case CodeUnrecognizedMethod:
		return KindUnrecognizedMethod
	case CodeResultTooLarge:
		return KindResultTooLarge
	}
	return 0
}

// CallError describes why a call could not be served.
type CallError struct {
	Kind   Kind
	Method string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Method, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Is lets both argument kinds match ErrInvalidArgument and an oversized
// result match ErrResultTooLarge, including one rebuilt from a wire code.
func (e *CallError) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindMissingArgument || e.Kind == KindArgumentShapeMismatch
	case ErrResultTooLarge:
		return e.Kind == KindResultTooLarge
	}
	return false
}

func missingArgument(m Method) error {
	return &CallError{Kind: KindMissingArgument, Method: m.String(), Err: errors.New("argument payload is required")}
}

func shapeMismatch(m Method, err error) error {
	return &CallError{Kind: KindArgumentShapeMismatch, Method: m.String(), Err: err}
}

func resultTooLarge(m Method, size, limit int) error {
	return &CallError{Kind: KindResultTooLarge, Method: m.String(), Err: fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrResultTooLarge, size, limit)}
}
