package procio

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Child is a running or exited child process.
//
// Stdin, Stdout and Stderr hold the parent's ends of the streams that were
// configured with Pipe, and are nil otherwise.
//
// A Child moves from running, optionally through killed, to waited. The
// first successful Wait, TryWait reporting an exit, or WaitWithOutput reaps
// the process; afterwards Wait returns the same status again and Kill fails
// with ErrInvalidUse. The methods are safe for concurrent use.
type Child struct {
	Stdin  *ChildStdin
	Stdout *ChildStdout
	Stderr *ChildStderr

	program string
	proc    *sysProcess
	log     zerolog.Logger

	// waitMu serializes the calls that reap the process.
	waitMu sync.Mutex

	mu     sync.Mutex
	status ExitStatus
	waited bool
	killed bool
}

func newChild(program string, proc *sysProcess, stdio *[3]resolved, log zerolog.Logger) *Child {
	c := &Child{
		program: program,
		proc:    proc,
		log:     log.With().Str("program", program).Int("pid", proc.id()).Logger(),
	}
	if f := stdio[streamStdin].parent; f != nil {
		c.Stdin = newChildStdin(f)
	}
	if f := stdio[streamStdout].parent; f != nil {
		c.Stdout = newChildStdout(f)
	}
	if f := stdio[streamStderr].parent; f != nil {
		c.Stderr = newChildStderr(f)
	}
	return c
}

// ID returns the operating system process id. Once the child has been
// waited the id may belong to another process.
func (c *Child) ID() int {
	return c.proc.id()
}

// Kill forces the child to exit immediately, with SIGKILL on Unix and
// TerminateProcess on Windows. It does not wait for the child to exit, and
// does not unblock reads or writes already in progress on its endpoints
// until the operating system closes the child's ends.
func (c *Child) Kill() error {
	c.mu.Lock()
	waited := c.waited
	c.mu.Unlock()
	if waited {
		return invalidUse("kill", c.program, "child already waited")
	}
	if err := c.proc.kill(); err != nil {
		if errors.Is(err, errFinished) {
			return invalidUse("kill", c.program, "child already waited")
		}
		return newError(WaitError, "kill", c.program, err)
	}
	c.mu.Lock()
	c.killed = true
	c.mu.Unlock()
	c.log.Debug().Msg("killed child")
	return nil
}

// Wait closes the parent's end of the child's standard input, if any, so a
// child reading it sees end of file, then blocks until the child exits and
// returns its exit status.
//
// Calling Wait again returns the same status.
func (c *Child) Wait() (ExitStatus, error) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	if status, ok := c.cached(); ok {
		return status, nil
	}
	if c.Stdin != nil {
		if err := c.Stdin.Close(); err != nil {
			c.log.Debug().Err(err).Msg("closing stdin before wait")
		}
	}
	status, err := c.proc.wait()
	if err != nil {
		return ExitStatus{}, newError(WaitError, "wait", c.program, err)
	}
	c.finish(status)
	return status, nil
}

// TryWait reports the exit status if the child has exited, without
// blocking. While the child is still running, or another goroutine is
// blocked in Wait, it returns false.
func (c *Child) TryWait() (ExitStatus, bool, error) {
	if !c.waitMu.TryLock() {
		return ExitStatus{}, false, nil
	}
	defer c.waitMu.Unlock()
	if status, ok := c.cached(); ok {
		return status, true, nil
	}
	status, exited, err := c.proc.tryWait()
	if err != nil {
		return ExitStatus{}, false, newError(WaitError, "wait", c.program, err)
	}
	if !exited {
		return ExitStatus{}, false, nil
	}
	c.finish(status)
	return status, true, nil
}

// WaitWithOutput closes the child's standard input, reads its standard
// output and standard error to end of file, then waits for it.
//
// Both streams are drained at the same time, one goroutine each, so a child
// that fills one pipe while the parent is reading the other cannot
// deadlock. A stream that was not piped, or whose endpoint was handed to
// another child, yields no bytes.
func (c *Child) WaitWithOutput() (*Output, error) {
	if c.Stdin != nil {
		if err := c.Stdin.Close(); err != nil {
			c.log.Debug().Err(err).Msg("closing stdin before drain")
		}
	}
	out := &Output{}
	var g errgroup.Group
	if c.Stdout != nil && c.Stdout.available() {
		g.Go(func() error {
			b, err := c.Stdout.ReadToEnd()
			out.Stdout = b
			return err
		})
	}
	if c.Stderr != nil && c.Stderr.available() {
		g.Go(func() error {
			b, err := c.Stderr.ReadToEnd()
			out.Stderr = b
			return err
		})
	}
	drainErr := g.Wait()

	status, err := c.Wait()
	if cerr := c.Close(); cerr != nil {
		c.log.Debug().Err(cerr).Msg("closing endpoints after wait")
	}
	if err != nil {
		return nil, err
	}
	if drainErr != nil {
		return nil, drainErr
	}
	out.Status = status
	return out, nil
}

// Close closes every endpoint the Child still owns. A failure to close one
// endpoint does not stop the others from being closed. Close does not wait
// for or kill the process.
func (c *Child) Close() error {
	var err error
	if c.Stdin != nil {
		err = errors.Join(err, c.Stdin.Close())
	}
	if c.Stdout != nil {
		err = errors.Join(err, c.Stdout.Close())
	}
	if c.Stderr != nil {
		err = errors.Join(err, c.Stderr.Close())
	}
	return err
}

func (c *Child) cached() (ExitStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.waited
}

func (c *Child) finish(status ExitStatus) {
	c.mu.Lock()
	c.status = status
	c.waited = true
	killed := c.killed
	c.mu.Unlock()
	c.log.Debug().Stringer("status", status).Bool("killed", killed).Msg("child exited")
}
