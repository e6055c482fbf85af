package procio

import (
	"errors"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

const (
	streamStdin = iota
	streamStdout
	streamStderr
)

var streamNames = [...]string{"stdin", "stdout", "stderr"}

type stdioKind int

const (
	stdioInherit stdioKind = iota
	stdioPipe
	stdioNull
	stdioFrom
)

// Stdio describes how one of a child's standard streams is connected. It is
// turned into operating system objects only when the child is spawned.
//
// The zero value is Inherit.
type Stdio struct {
	kind stdioKind
	from *handoff
}

// Inherit connects the stream to the parent's corresponding standard stream.
func Inherit() Stdio { return Stdio{kind: stdioInherit} }

// Pipe connects the stream to a new pipe. The parent's end is available on
// the Child as Stdin, Stdout or Stderr.
func Pipe() Stdio { return Stdio{kind: stdioPipe} }

// Null connects the stream to the null device. A child reading it sees end
// of file immediately; whatever it writes is discarded.
func Null() Stdio { return Stdio{kind: stdioNull} }

// From connects the stream to an endpoint of another child, chaining the two
// processes. A *ChildStdout or *ChildStderr can feed a standard input; a
// *ChildStdin can receive a standard output or standard error.
//
// From takes ownership of e immediately: any later use of e fails with
// ErrInvalidUse. The returned Stdio can be used by exactly one spawn.
func From(e Endpoint) Stdio {
	h := &handoff{}
	var base *endpoint
	if e != nil {
		base = e.base()
	}
	if base == nil {
		h.err = invalidUse("from", "", "nil endpoint")
		return Stdio{kind: stdioFrom, from: h}
	}
	h.name = base.name
	h.readable = e.readable()
	h.f, h.err = base.take()
	return Stdio{kind: stdioFrom, from: h}
}

func (s Stdio) String() string {
	switch s.kind {
	case stdioPipe:
		return "pipe"
	case stdioNull:
		return "null"
	case stdioFrom:
		return "from " + s.from.name
	}
	return "inherit"
}

// handoff carries an endpoint's file from From to the spawn that uses it.
type handoff struct {
	name     string
	readable bool

	mu   sync.Mutex
	f    *os.File
	err  error
	used bool
}

func (h *handoff) claim() (*os.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	if h.used {
		return nil, invalidUse("from", h.name, "stdio already used by an earlier spawn")
	}
	h.used = true
	f := h.f
	h.f = nil
	return f, nil
}

// discard closes the file of an unused From.
func (s Stdio) discard() {
	if s.kind != stdioFrom {
		return
	}
	if f, err := s.from.claim(); err == nil && f != nil {
		f.Close()
	}
}

// resolved is a Stdio turned into concrete files for one stream.
type resolved struct {
	// parent is kept by the parent; only Pipe sets it.
	parent *os.File
	// child is attached to the child's stream. On Unix a nil child leaves
	// the parent's own descriptor in place.
	child *os.File
	// closeChild reports whether child belongs to us and must be closed
	// once the process has been created.
	closeChild bool
}

func (r *resolved) closeChildSide() error {
	if r.child == nil || !r.closeChild {
		return nil
	}
	err := r.child.Close()
	r.child = nil
	return err
}

func (r *resolved) release() error {
	err := r.closeChildSide()
	if r.parent != nil {
		err = errors.Join(err, r.parent.Close())
		r.parent = nil
	}
	return err
}

// resolve creates the objects for stream according to s.
func (s Stdio) resolve(stream int, log zerolog.Logger) (resolved, error) {
	switch s.kind {
	case stdioPipe:
		return pipeStream(stream)
	case stdioNull:
		return nullStream(stream)
	case stdioFrom:
		f, err := s.from.claim()
		if err != nil {
			return resolved{}, err
		}
		if s.from.readable != (stream == streamStdin) {
			f.Close()
			return resolved{}, invalidUse("from", s.from.name,
				"endpoint cannot be connected to the child's "+streamNames[stream])
		}
		return fromStream(stream, f, log)
	}
	return inheritStream(stream)
}
