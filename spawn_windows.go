package procio

import (
	"os"
	"syscall"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Handles are inheritable between their creation and CreateProcess;
// holding ForkLock keeps concurrent spawns from picking them up.
func lockSpawn()   { syscall.ForkLock.Lock() }
func unlockSpawn() { syscall.ForkLock.Unlock() }

// startProcess runs CreateProcess with the resolved child handles as the
// standard handles. The environment block is always built explicitly, so
// the parent's own environment is never modified.
func startProcess(path string, argv, env []string, dir string, stdio *[3]resolved) (*sysProcess, error) {
	appName, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	cmdLine, err := windows.UTF16PtrFromString(windows.ComposeCommandLine(argv))
	if err != nil {
		return nil, err
	}
	var dirp *uint16
	if dir != "" {
		if dirp, err = windows.UTF16PtrFromString(dir); err != nil {
			return nil, err
		}
	}
	block, err := envBlock(env)
	if err != nil {
		return nil, err
	}

	si := new(windows.StartupInfo)
	si.Cb = uint32(unsafe.Sizeof(*si))
	si.Flags = windows.STARTF_USESTDHANDLES
	si.StdInput = stdHandle(stdio[streamStdin].child)
	si.StdOutput = stdHandle(stdio[streamStdout].child)
	si.StdErr = stdHandle(stdio[streamStderr].child)

	pi := new(windows.ProcessInformation)
	err = windows.CreateProcess(appName, cmdLine, nil, nil, true,
		windows.CREATE_UNICODE_ENVIRONMENT, &block[0], dirp, si, pi)
	if err != nil {
		return nil, err
	}
	return newSysProcess(pi), nil
}

func stdHandle(f *os.File) windows.Handle {
	if f == nil {
		return 0
	}
	return windows.Handle(f.Fd())
}

// envBlock encodes env as a UTF-16 block of NUL-terminated "key=value"
// strings followed by an empty string. An empty env still yields a valid
// block so the child does not fall back to the parent's environment.
func envBlock(env []string) ([]uint16, error) {
	if len(env) == 0 {
		return []uint16{0, 0}, nil
	}
	var block []uint16
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == 0 {
				return nil, windows.ERROR_INVALID_PARAMETER
			}
		}
		block = append(block, utf16.Encode([]rune(kv))...)
		block = append(block, 0)
	}
	return append(block, 0), nil
}
