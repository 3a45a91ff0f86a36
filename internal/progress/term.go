package progress

import (
	"io"

	"github.com/mattn/go-isatty"
)

type fder interface {
	Fd() uintptr
}

// IsTerminal reports whether w is backed by a terminal. Intercepting Outputs
// answer for the stream they wrap.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(fder)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
