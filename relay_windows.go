package procio

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

// startRelay bridges src, an endpoint taken from another child, into a new
// inheritable pipe and returns the pipe end to attach to the child's stream.
//
// The relay goroutine works on a duplicate of src, so the caller may close
// src as soon as startRelay returns. It copies until end of stream or the
// first error and then closes both of its handles; the child sees end of
// file, or a broken pipe, exactly when the upstream does.
func startRelay(src *os.File, stream int, log zerolog.Logger) (*os.File, error) {
	dup, err := duplicateHandle(windows.Handle(src.Fd()), false)
	if err != nil {
		return nil, err
	}
	r, w, err := createPipe()
	if err != nil {
		windows.CloseHandle(dup)
		return nil, err
	}
	toChild := stream == streamStdin
	keep, give := w, r
	if !toChild {
		keep, give = r, w
	}
	if err := windows.SetHandleInformation(keep, windows.HANDLE_FLAG_INHERIT, 0); err != nil {
		windows.CloseHandle(dup)
		windows.CloseHandle(r)
		windows.CloseHandle(w)
		return nil, err
	}

	source := os.NewFile(uintptr(dup), "relay source")
	pipe := os.NewFile(uintptr(keep), "relay pipe")
	log = log.With().Str("stream", streamNames[stream]).Logger()
	if toChild {
		go relay(pipe, source, log)
	} else {
		go relay(source, pipe, log)
	}
	log.Debug().Msg("pipe relay started")
	return os.NewFile(uintptr(give), streamNames[stream]), nil
}

func relay(dst, src *os.File, log zerolog.Logger) {
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	src.Close()
	if err != nil {
		log.Debug().Err(err).Int64("bytes", n).Msg("pipe relay stopped")
		return
	}
	log.Debug().Int64("bytes", n).Msg("pipe relay finished")
}
