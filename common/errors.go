package common

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable set of error codes surfaced to external callers,
// per the module's error taxonomy: validation errors carry no side effect,
// not-found errors are never retried, capacity/EOF errors are handled
// locally and should not escape a well-behaved caller, and state errors
// indicate a programmer mistake.
type ErrorCode int

const (
	CodeGenericError ErrorCode = iota
	CodeInvalidArgument
	CodeSchemaDBExist
	CodeSchemaDBNotExist
	CodeSchemaDBNotOpened
	CodeSchemaTableNotExist
	CodeRecordOpened
	CodeRecordNoMem
	CodeRecordNotExist
	CodeInvalidRID
	CodeInvalidKey
	CodeRecordEOF
	CodeRecordClosed
	CodeBufferPoolInvalidPageNum
)

func (c ErrorCode) String() string {
	switch c {
	case CodeGenericError:
		return "GENERIC_ERROR"
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodeSchemaDBExist:
		return "SCHEMA_DB_EXIST"
	case CodeSchemaDBNotExist:
		return "SCHEMA_DB_NOT_EXIST"
	case CodeSchemaDBNotOpened:
		return "SCHEMA_DB_NOT_OPENED"
	case CodeSchemaTableNotExist:
		return "SCHEMA_TABLE_NOT_EXIST"
	case CodeRecordOpened:
		return "RECORD_OPENNED"
	case CodeRecordNoMem:
		return "RECORD_NOMEM"
	case CodeRecordNotExist:
		return "RECORD_RECORD_NOT_EXIST"
	case CodeInvalidRID:
		return "RECORD_INVALIDRID"
	case CodeInvalidKey:
		return "RECORD_INVALID_KEY"
	case CodeRecordEOF:
		return "RECORD_EOF"
	case CodeRecordClosed:
		return "RECORD_CLOSED"
	case CodeBufferPoolInvalidPageNum:
		return "BUFFERPOOL_INVALID_PAGE_NUM"
	}
	return "UNKNOWN"
}

// Error is the error type used throughout the engine. It pairs a stable
// ErrorCode with a human-readable message so callers can branch on Code()
// while still getting a useful Error() string in logs.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) an *Error,
// otherwise returns CodeGenericError.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeGenericError
}
