package warpops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

var (
	ErrGroupNotFound  = errors.New("group not found")
	ErrTaskNotFound   = errors.New("task not found")
	ErrGroupActive    = errors.New("group still has unfinished tasks")
	ErrEngineClosed   = errors.New("engine is closed")
	ErrUnknownKind    = errors.New("unknown operation kind")
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotSupported   = errors.New("operation not supported by adaptor")

	// ErrCanceled is returned by Job.Checkpoint once the task, one of its
	// ancestors or its group has been canceled. It is not a failure.
	ErrCanceled = errors.New("canceled")
)

// ErrorKind classifies adaptor failures. The classification decides whether
// a task is retried and is always exposed next to the raw message.
type ErrorKind int

const (
	ErrKindOther ErrorKind = iota
	ErrKindTransient
	ErrKindPermission
	ErrKindNotFound
	ErrKindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindTransient:
		return "transient"
	case ErrKindPermission:
		return "permission"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConflict:
		return "conflict"
	default:
		return "other"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ErrorKind) UnmarshalText(b []byte) error {
	for v := ErrKindOther; v <= ErrKindConflict; v++ {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", b)
}

// Retryable reports whether a task failing with this kind may be re-attempted.
func (k ErrorKind) Retryable() bool {
	return k == ErrKindTransient
}

// OpError is a classified adaptor or handler failure.
type OpError struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// NewOpError wraps err, classifying it with KindOf unless it already
// carries a classification.
func NewOpError(op, path string, err error) *OpError {
	var oe *OpError
	if errors.As(err, &oe) {
		return &OpError{Kind: oe.Kind, Op: op, Path: path, Err: err}
	}
	return &OpError{Kind: KindOf(err), Op: op, Path: path, Err: err}
}

// asOpError returns the *OpError in err's chain as is, or wraps err.
func asOpError(op, path string, err error) *OpError {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe
	}
	return NewOpError(op, path, err)
}

// Errorf builds an OpError of an explicit kind.
func Errorf(kind ErrorKind, op, path, format string, args ...any) *OpError {
	return &OpError{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies an arbitrary error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrKindOther
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrKindNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrKindPermission
	case errors.Is(err, fs.ErrExist):
		return ErrKindConflict
	case errors.Is(err, context.DeadlineExceeded):
		return ErrKindTransient
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classifyErrno(errno)
	}
	var te interface{ Temporary() bool }
	if errors.As(err, &te) && te.Temporary() {
		return ErrKindTransient
	}
	return ErrKindOther
}

// isCanceled reports whether err represents cooperative cancellation rather
// than a failure.
func isCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// needsCopyFallback reports whether a failed rename should be redone as a
// copy followed by a delete.
func needsCopyFallback(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) && isCrossDevice(errno) {
		return true
	}
	return errors.Is(err, ErrNotSupported)
}
