//go:build unix && !linux

package procio

func blockUntilWaitable(pid int) (bool, error) {
	return false, nil
}
