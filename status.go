package procio

import (
	"fmt"
	"syscall"
)

// ExitStatus describes how a child process terminated.
//
// On Unix a process killed by a signal has no exit code; Code reports false
// and Signal reports the signal. On Windows every terminated process has a
// code; Kill terminates with code 1.
type ExitStatus struct {
	code     int
	exited   bool
	signal   syscall.Signal
	signaled bool
	coreDump bool
}

// Code returns the exit code of the process and whether one is available.
func (s ExitStatus) Code() (int, bool) {
	return s.code, s.exited
}

// Success reports whether the process exited normally with code 0.
func (s ExitStatus) Success() bool {
	return s.exited && s.code == 0
}

// Signal returns the signal that terminated the process, if any.
func (s ExitStatus) Signal() (syscall.Signal, bool) {
	return s.signal, s.signaled
}

// ExitCode returns the exit code of the process, or -1 if it was terminated
// abnormally.
func (s ExitStatus) ExitCode() int {
	if !s.exited {
		return -1
	}
	return s.code
}

// String returns a human-readable form of s.
func (s ExitStatus) String() string {
	switch {
	case s.exited:
		return fmt.Sprintf("exit status %d", s.code)
	case s.signaled:
		str := "signal: " + s.signal.String()
		if s.coreDump {
			str += " (core dumped)"
		}
		return str
	}
	return "unknown status"
}

// Output is the result of draining a child's standard output and standard
// error and waiting for it to exit.
type Output struct {
	Status ExitStatus
	Stdout []byte
	Stderr []byte
}
