//go:build unix

package procio

import (
	"sync"

	"golang.org/x/sys/unix"
)

// sysProcess is a forked child identified by its pid.
type sysProcess struct {
	pid int

	// mu orders signal delivery against reaping so that Kill never
	// targets a pid the kernel may already have recycled.
	mu   sync.Mutex
	done bool
}

func newSysProcess(pid int) *sysProcess {
	return &sysProcess{pid: pid}
}

func (p *sysProcess) id() int {
	return p.pid
}

// kill sends SIGKILL. It does not wait for the process to exit.
func (p *sysProcess) kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return errFinished
	}
	return unix.Kill(p.pid, unix.SIGKILL)
}

// wait blocks until the process exits and reaps it.
func (p *sysProcess) wait() (ExitStatus, error) {
	waitable, err := blockUntilWaitable(p.pid)
	if err != nil {
		return ExitStatus{}, err
	}
	if waitable {
		// The process has exited but is not reaped yet, so holding mu
		// cannot stall kill for long.
		p.mu.Lock()
		defer p.mu.Unlock()
		status, err := p.reap()
		if err == nil {
			p.done = true
		}
		return status, err
	}
	status, err := p.reap()
	if err == nil {
		p.mu.Lock()
		p.done = true
		p.mu.Unlock()
	}
	return status, err
}

// tryWait reaps the process if it has exited and reports whether it did.
func (p *sysProcess) tryWait() (ExitStatus, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return ExitStatus{}, false, errFinished
	}
	var ws unix.WaitStatus
	pid, err := wait4(p.pid, &ws, unix.WNOHANG)
	if err != nil {
		return ExitStatus{}, false, err
	}
	if pid == 0 {
		return ExitStatus{}, false, nil
	}
	p.done = true
	return exitStatusOf(ws), true, nil
}

func (p *sysProcess) reap() (ExitStatus, error) {
	var ws unix.WaitStatus
	if _, err := wait4(p.pid, &ws, 0); err != nil {
		return ExitStatus{}, err
	}
	return exitStatusOf(ws), nil
}

func wait4(pid int, ws *unix.WaitStatus, options int) (int, error) {
	for {
		wpid, err := unix.Wait4(pid, ws, options, nil)
		if err != unix.EINTR {
			return wpid, err
		}
	}
}

func exitStatusOf(ws unix.WaitStatus) ExitStatus {
	switch {
	case ws.Exited():
		return ExitStatus{code: ws.ExitStatus(), exited: true}
	case ws.Signaled():
		return ExitStatus{signal: ws.Signal(), signaled: true, coreDump: ws.CoreDump()}
	}
	return ExitStatus{}
}
