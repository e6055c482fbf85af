//go:build unix

package procio

import (
	"runtime"
	"syscall"
)

// syscall.StartProcess serializes itself with syscall.ForkLock, and pipes
// are created close-on-exec, so Unix spawns need no extra locking.
func lockSpawn()   {}
func unlockSpawn() {}

// startProcess forks, moves the resolved child files onto descriptors 0, 1
// and 2, changes to dir and executes path with an explicit environment. A
// failed exec is reported back through the runtime's status pipe; the
// forked child never returns into Go code.
func startProcess(path string, argv, env []string, dir string, stdio *[3]resolved) (*sysProcess, error) {
	files := make([]uintptr, len(stdio))
	for i := range stdio {
		if f := stdio[i].child; f != nil {
			// Fd also puts the descriptor back in blocking mode, which is
			// what the child expects.
			files[i] = f.Fd()
		} else {
			files[i] = uintptr(i)
		}
	}
	pid, _, err := syscall.StartProcess(path, argv, &syscall.ProcAttr{
		Dir:   dir,
		Env:   env,
		Files: files,
	})
	runtime.KeepAlive(stdio)
	if err != nil {
		return nil, err
	}
	return newSysProcess(pid), nil
}
