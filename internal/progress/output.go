package progress

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Output is the output sink handed to steps and subprocesses while a build
// runs. While active, every complete line written to it is forwarded to a
// LineWriter (normally the Bar); lines that are blank once trailing
// whitespace is trimmed are dropped. After Release it writes straight
// through to the original stream.
type Output struct {
	mu       sync.Mutex
	orig     io.Writer
	dst      LineWriter
	pending  []byte
	active   bool
	released bool
}

// Intercept starts routing writes for orig through dst. The caller must
// Release the returned Output on every exit path, typically with defer.
func Intercept(orig io.Writer, dst LineWriter) *Output {
	return &Output{orig: orig, dst: dst, active: true}
}

// Write implements io.Writer. It is safe for concurrent use, which matters
// when a subprocess's stdout and stderr are copied by separate goroutines.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active {
		return o.orig.Write(p)
	}

	o.pending = append(o.pending, p...)
	for {
		i := bytes.IndexByte(o.pending, '\n')
		if i < 0 {
			break
		}
		o.emit(o.pending[:i])
		o.pending = o.pending[i+1:]
	}
	return len(p), nil
}

// Flush forwards a trailing partial line, if any.
func (o *Output) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushLocked()
	return nil
}

// Release flushes pending text and restores direct writes to the original
// stream. Only the first call has any effect.
func (o *Output) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return
	}
	o.flushLocked()
	o.active = false
	o.released = true
}

// Active reports whether writes are still being intercepted.
func (o *Output) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Fd returns the file descriptor of the original stream, or ^uintptr(0) when
// it is not backed by a file.
func (o *Output) Fd() uintptr {
	if f, ok := o.orig.(fder); ok {
		return f.Fd()
	}
	return ^uintptr(0)
}

func (o *Output) flushLocked() {
	if len(o.pending) > 0 && o.active {
		o.emit(o.pending)
	}
	o.pending = nil
}

func (o *Output) emit(line []byte) {
	text := strings.TrimRight(string(line), " \t\r\n")
	if text == "" {
		return
	}
	o.dst.WriteLine(text)
}

// lineWriter adapts a LineWriter to io.Writer permanently, for loggers that
// must share the terminal with the bar.
type lineWriter struct {
	mu      sync.Mutex
	dst     LineWriter
	pending []byte
}

// Lines returns an io.Writer that forwards each complete, non-blank line to
// dst.
func Lines(dst LineWriter) io.Writer {
	return &lineWriter{dst: dst}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		if text := strings.TrimRight(string(w.pending[:i]), " \t\r"); text != "" {
			w.dst.WriteLine(text)
		}
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}
