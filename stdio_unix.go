//go:build unix

package procio

import (
	"os"

	"github.com/rs/zerolog"
)

// inheritStream leaves the child's descriptor as the parent's own; the
// standard streams are never closed by this package.
func inheritStream(stream int) (resolved, error) {
	return resolved{}, nil
}

// pipeStream returns a pipe whose parent end is close-on-exec, so later
// children never inherit it.
func pipeStream(stream int) (resolved, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return resolved{}, newError(ResourceError, "pipe", streamNames[stream], err)
	}
	if stream == streamStdin {
		return resolved{parent: w, child: r, closeChild: true}, nil
	}
	return resolved{parent: r, child: w, closeChild: true}, nil
}

func nullStream(stream int) (resolved, error) {
	flag := os.O_WRONLY
	if stream == streamStdin {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(os.DevNull, flag, 0)
	if err != nil {
		return resolved{}, newError(ResourceError, "open", os.DevNull, err)
	}
	return resolved{child: f, closeChild: true}, nil
}

// fromStream hands the endpoint's descriptor straight to the child;
// descriptors survive fork, so no relay is needed.
func fromStream(stream int, f *os.File, _ zerolog.Logger) (resolved, error) {
	return resolved{child: f, closeChild: true}, nil
}
