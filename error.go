package procio

import (
	"errors"
	"fmt"
)

// Kind classifies the failures reported by this package.
type Kind int

const (
	// ConfigurationError means the Cmd cannot be run as configured: the
	// program was not found or is not executable, or the working directory
	// does not exist.
	ConfigurationError Kind = iota + 1
	// ResourceError means a pipe or handle could not be created or
	// duplicated.
	ResourceError
	// SpawnError means the operating system refused to create the process.
	SpawnError
	// IoError means a read or write on an endpoint failed for a reason
	// other than end of stream.
	IoError
	// WaitError means querying, waiting on or terminating the process failed.
	WaitError
	// InvalidUse means an endpoint, Stdio or Child was used after it was
	// consumed, closed or waited.
	InvalidUse
)

func (k Kind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration error"
	case ResourceError:
		return "resource error"
	case SpawnError:
		return "spawn error"
	case IoError:
		return "i/o error"
	case WaitError:
		return "wait error"
	case InvalidUse:
		return "invalid use"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned by every operation in this package.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Op is the operation that failed, such as "spawn", "read" or "wait".
	Op string
	// Name is the program or stream the operation concerned.
	Name string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	s := "procio: " + e.Op
	if e.Name != "" {
		s += " " + e.Name
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or zero if
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = errors.New("executable file not found in $PATH")

// ErrDot indicates that a path lookup resolved to an executable
// in the current directory due to '.' being in the path, either
// implicitly or explicitly.
var ErrDot = errors.New("cannot run executable found relative to current directory")

// ErrInvalidUse is wrapped by every error of kind InvalidUse.
var ErrInvalidUse = errors.New("invalid use")

// errFinished is returned by the process primitives once the process has
// been reaped.
var errFinished = errors.New("process already finished")

func newError(kind Kind, op, name string, err error) error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

func invalidUse(op, name, why string) error {
	return &Error{Kind: InvalidUse, Op: op, Name: name, Err: fmt.Errorf("%w: %s", ErrInvalidUse, why)}
}
