package procio

import (
	"os"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

var stdHandles = [...]uint32{
	windows.STD_INPUT_HANDLE,
	windows.STD_OUTPUT_HANDLE,
	windows.STD_ERROR_HANDLE,
}

// inheritStream gives the child an inheritable duplicate of the parent's
// standard handle. The duplicate is ours to close; the real standard
// handle never is. A parent without a console hands the child no handle.
func inheritStream(stream int) (resolved, error) {
	h, err := windows.GetStdHandle(stdHandles[stream])
	if err != nil || h == 0 || h == windows.InvalidHandle {
		return resolved{}, nil
	}
	dup, err := duplicateHandle(h, true)
	if err != nil {
		return resolved{}, newError(ResourceError, "duplicate", streamNames[stream], err)
	}
	return resolved{child: os.NewFile(uintptr(dup), streamNames[stream]), closeChild: true}, nil
}

// pipeStream creates an inheritable pipe and then strips inheritance from
// the parent's end so no other child can pick it up.
func pipeStream(stream int) (resolved, error) {
	r, w, err := createPipe()
	if err != nil {
		return resolved{}, newError(ResourceError, "pipe", streamNames[stream], err)
	}
	parent, child := r, w
	if stream == streamStdin {
		parent, child = w, r
	}
	if err := windows.SetHandleInformation(parent, windows.HANDLE_FLAG_INHERIT, 0); err != nil {
		windows.CloseHandle(r)
		windows.CloseHandle(w)
		return resolved{}, newError(ResourceError, "pipe", streamNames[stream], err)
	}
	return resolved{
		parent:     os.NewFile(uintptr(parent), streamNames[stream]),
		child:      os.NewFile(uintptr(child), streamNames[stream]),
		closeChild: true,
	}, nil
}

func nullStream(stream int) (resolved, error) {
	access := uint32(windows.GENERIC_WRITE)
	if stream == streamStdin {
		access = windows.GENERIC_READ
	}
	name, err := windows.UTF16PtrFromString(os.DevNull)
	if err != nil {
		return resolved{}, newError(ResourceError, "open", os.DevNull, err)
	}
	h, err := windows.CreateFile(name, access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		inheritable(), windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return resolved{}, newError(ResourceError, "open", os.DevNull, err)
	}
	return resolved{child: os.NewFile(uintptr(h), os.DevNull), closeChild: true}, nil
}

// fromStream cannot pass the endpoint handle to CreateProcess: it was made
// non-inheritable when its pipe was created. A relay re-homes the data into
// a fresh inheritable pipe instead.
func fromStream(stream int, f *os.File, log zerolog.Logger) (resolved, error) {
	child, err := startRelay(f, stream, log)
	f.Close()
	if err != nil {
		return resolved{}, newError(ResourceError, "relay", streamNames[stream], err)
	}
	return resolved{child: child, closeChild: true}, nil
}

func inheritable() *windows.SecurityAttributes {
	sa := &windows.SecurityAttributes{InheritHandle: 1}
	sa.Length = uint32(unsafe.Sizeof(*sa))
	return sa
}

func createPipe() (r, w windows.Handle, err error) {
	err = windows.CreatePipe(&r, &w, inheritable(), 0)
	return r, w, err
}

func duplicateHandle(h windows.Handle, inherit bool) (windows.Handle, error) {
	p := windows.CurrentProcess()
	var dup windows.Handle
	err := windows.DuplicateHandle(p, h, p, &dup, 0, inherit, windows.DUPLICATE_SAME_ACCESS)
	return dup, err
}
