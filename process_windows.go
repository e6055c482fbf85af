package procio

import (
	"sync"

	"golang.org/x/sys/windows"
)

// sysProcess is a child created by CreateProcess. The process handle keeps
// the pid reserved until it is closed after the first successful wait.
type sysProcess struct {
	pid    int
	mu     sync.Mutex
	handle windows.Handle
	thread windows.Handle
	done   bool
}

func newSysProcess(pi *windows.ProcessInformation) *sysProcess {
	return &sysProcess{
		pid:    int(pi.ProcessId),
		handle: pi.Process,
		thread: pi.Thread,
	}
}

func (p *sysProcess) id() int {
	return p.pid
}

// kill terminates the process with exit code 1. It does not wait for the
// process to exit.
func (p *sysProcess) kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return errFinished
	}
	err := windows.TerminateProcess(p.handle, 1)
	if err == nil {
		return nil
	}
	// TerminateProcess fails with access denied once the process is gone.
	if ev, werr := windows.WaitForSingleObject(p.handle, 0); werr == nil && ev == windows.WAIT_OBJECT_0 {
		return nil
	}
	return err
}

func (p *sysProcess) wait() (ExitStatus, error) {
	ev, err := windows.WaitForSingleObject(p.handle, windows.INFINITE)
	if err != nil {
		return ExitStatus{}, err
	}
	if ev != windows.WAIT_OBJECT_0 {
		return ExitStatus{}, windows.Errno(ev)
	}
	return p.reap()
}

func (p *sysProcess) tryWait() (ExitStatus, bool, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done {
		return ExitStatus{}, false, errFinished
	}
	ev, err := windows.WaitForSingleObject(p.handle, 0)
	if err != nil {
		return ExitStatus{}, false, err
	}
	if ev == uint32(windows.WAIT_TIMEOUT) {
		return ExitStatus{}, false, nil
	}
	status, err := p.reap()
	if err != nil {
		return ExitStatus{}, false, err
	}
	return status, true, nil
}

// reap reads the exit code and releases the process and thread handles.
func (p *sysProcess) reap() (ExitStatus, error) {
	var code uint32
	if err := windows.GetExitCodeProcess(p.handle, &code); err != nil {
		return ExitStatus{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	windows.CloseHandle(p.thread)
	windows.CloseHandle(p.handle)
	return ExitStatus{code: int(code), exited: true}, nil
}
