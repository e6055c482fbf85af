package procio

import (
	"errors"
	"io"
	"os"
	"sync"
)

type endpointState int

const (
	endpointOpen endpointState = iota
	endpointClosed
	endpointConsumed
)

// endpoint owns the parent's end of a pipe attached to one of a child's
// standard streams. The file is released exactly once: by Close, or by
// handing it to another child through From.
type endpoint struct {
	name string

	mu    sync.Mutex
	f     *os.File
	state endpointState
}

func (e *endpoint) file(op string) (*os.File, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkLocked(op); err != nil {
		return nil, err
	}
	return e.f, nil
}

// take transfers ownership of the file to the caller.
func (e *endpoint) take() (*os.File, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkLocked("from"); err != nil {
		return nil, err
	}
	f := e.f
	e.state = endpointConsumed
	e.f = nil
	return f, nil
}

func (e *endpoint) checkLocked(op string) error {
	switch e.state {
	case endpointClosed:
		return invalidUse(op, e.name, "endpoint closed")
	case endpointConsumed:
		return invalidUse(op, e.name, "endpoint handed to another child")
	}
	return nil
}

func (e *endpoint) available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == endpointOpen
}

// Close releases the underlying pipe. Closing an endpoint twice, or one that
// was handed to another child, is a no-op.
func (e *endpoint) Close() error {
	e.mu.Lock()
	f := e.f
	if e.state == endpointOpen {
		e.state = endpointClosed
		e.f = nil
	}
	e.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil {
		return newError(IoError, "close", e.name, err)
	}
	return nil
}

func (e *endpoint) ioError(op string, err error) error {
	if errors.Is(err, os.ErrClosed) {
		return invalidUse(op, e.name, "endpoint closed")
	}
	return newError(IoError, op, e.name, err)
}

// Endpoint is the parent's end of a pipe connected to a child's standard
// stream. It is implemented by *ChildStdin, *ChildStdout and *ChildStderr
// and is accepted by From.
type Endpoint interface {
	io.Closer
	base() *endpoint
	readable() bool
}

// ChildStdin writes to a child's standard input.
type ChildStdin struct {
	endpoint
}

var _ io.WriteCloser = (*ChildStdin)(nil)

func newChildStdin(f *os.File) *ChildStdin {
	return &ChildStdin{endpoint{name: "stdin", f: f}}
}

// Write writes p to the child's standard input. A child that has exited or
// closed its input makes Write fail with an IoError.
func (w *ChildStdin) Write(p []byte) (int, error) {
	f, err := w.file("write")
	if err != nil {
		return 0, err
	}
	n, err := f.Write(p)
	if err != nil {
		return n, w.ioError("write", err)
	}
	return n, nil
}

func (w *ChildStdin) base() *endpoint {
	if w == nil {
		return nil
	}
	return &w.endpoint
}

func (w *ChildStdin) readable() bool { return false }

// outputEndpoint reads from a child's standard output or standard error.
type outputEndpoint struct {
	endpoint
}

// Read reads up to len(p) bytes. At end of stream it returns 0, io.EOF.
func (r *outputEndpoint) Read(p []byte) (int, error) {
	f, err := r.file("read")
	if err != nil {
		return 0, err
	}
	n, err := f.Read(p)
	if err != nil && err != io.EOF {
		return n, r.ioError("read", err)
	}
	return n, err
}

// ReadToEnd reads until end of stream and returns everything read.
func (r *outputEndpoint) ReadToEnd() ([]byte, error) {
	return io.ReadAll(r)
}

// ReadToString is ReadToEnd returning a string.
func (r *outputEndpoint) ReadToString() (string, error) {
	b, err := r.ReadToEnd()
	return string(b), err
}

// ChildStdout reads from a child's standard output.
type ChildStdout struct {
	outputEndpoint
}

// ChildStderr reads from a child's standard error.
type ChildStderr struct {
	outputEndpoint
}

func (r *ChildStdout) base() *endpoint {
	if r == nil {
		return nil
	}
	return &r.endpoint
}

func (r *ChildStdout) readable() bool { return true }

func (r *ChildStderr) base() *endpoint {
	if r == nil {
		return nil
	}
	return &r.endpoint
}

func (r *ChildStderr) readable() bool { return true }

var (
	_ Endpoint      = (*ChildStdin)(nil)
	_ Endpoint      = (*ChildStdout)(nil)
	_ Endpoint      = (*ChildStderr)(nil)
	_ io.ReadCloser = (*ChildStdout)(nil)
	_ io.ReadCloser = (*ChildStderr)(nil)
)

func newChildStdout(f *os.File) *ChildStdout {
	return &ChildStdout{outputEndpoint{endpoint{name: "stdout", f: f}}}
}

func newChildStderr(f *os.File) *ChildStderr {
	return &ChildStderr{outputEndpoint{endpoint{name: "stderr", f: f}}}
}
