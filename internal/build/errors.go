package build

import (
	"errors"
	"fmt"
)

// ErrAbortedByUser is returned when the user declines a destructive
// confirmation. It is an expected way out, not a failure of the tool.
var ErrAbortedByUser = errors.New("aborted by user")

// InvalidTargetError rejects a target directory before anything on disk is
// touched.
type InvalidTargetError struct {
	Target string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target directory %q: %s", e.Target, e.Reason)
}

// ConfigurationError reports misuse of the builder by the calling code.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// FilesystemError wraps a failed create, copy, stat or delete on disk.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
