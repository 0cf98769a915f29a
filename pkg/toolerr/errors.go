package toolerr

import (
	"errors"
	"fmt"
	"io/fs"
)

// Code identifies a class of tool failure. The value is what clients see in
// the "error" field of a failed result.
type Code string

const (
	CodeRange            Code = "RangeError"
	CodeNotFound         Code = "NotFoundError"
	CodeNotAFile         Code = "NotAFileError"
	CodePermission       Code = "PermissionError"
	CodeEncoding         Code = "EncodingError"
	CodeIO               Code = "IOError"
	CodeUnauthorizedPath Code = "UnauthorizedPathError"
	CodeInvalidInput     Code = "InvalidInputError"
	CodeUnsupported      Code = "UnsupportedError"
	CodeInternal         Code = "InternalError"
)

// Error wraps an underlying error with a code and message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with a message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error that wraps an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf reports the code of the first coded error in err's chain.
// Uncoded errors are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeInternal
}

// MessageOf returns the human-readable message of a coded error without the
// code prefix.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		if te.Message != "" {
			return te.Message
		}
		if te.Err != nil {
			return te.Err.Error()
		}
		return string(te.Code)
	}
	return err.Error()
}

// FromFS classifies a file system error for path.
func FromFS(err error, path string) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return Wrap(CodeNotFound, err, "file '%s' does not exist", path)
	case errors.Is(err, fs.ErrPermission):
		return Wrap(CodePermission, err, "permission denied for '%s'", path)
	default:
		return Wrap(CodeIO, err, "i/o failure on '%s'", path)
	}
}
