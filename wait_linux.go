package procio

import "golang.org/x/sys/unix"

// blockUntilWaitable waits for the process to exit without reaping it, so
// the pid stays reserved until the caller collects the status.
func blockUntilWaitable(pid int) (bool, error) {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		switch err {
		case nil:
			return true, nil
		case unix.EINTR:
			continue
		case unix.ENOSYS:
			return false, nil
		}
		return false, err
	}
}
