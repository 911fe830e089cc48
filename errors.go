package wral

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPoisoned is returned by AddEntry once a prior write or fsync failure
// has left the writer in an inconsistent state. The log must be closed and
// reopened (which triggers recovery) before it accepts further entries.
var ErrPoisoned = errors.New("wral: writer poisoned by a prior durability failure")

// ErrClosed is returned by AddEntry once Close has run. Iter and Range do
// not check for Close and return no error.
var ErrClosed = errors.New("wral: log is closed")

// IoError wraps an underlying syscall failure (write, read, fsync, rename,
// unlink, ...). Op and Path identify what was being attempted.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("wral: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IoError{Op: op, Path: path, Err: errors.WithStack(err)}
}

// CorruptionError reports a structural violation discovered while
// validating a frozen journal file: a CRC mismatch, a bad magic value, an
// unsupported version, or a gap between adjacent files' sequence ranges.
// Corruption in a frozen file is always fatal to Open.
type CorruptionError struct {
	Path   string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("wral: corrupt journal %s: %s", e.Path, e.Reason)
}

func corruptErr(path, reason string, args ...interface{}) error {
	return &CorruptionError{Path: path, Reason: fmt.Sprintf(reason, args...)}
}

// InvalidConfigError reports a Config value that cannot be used to open a
// log: a malformed Name, or a JournalSizeLimit below the floor needed to
// hold even the largest reasonable single record.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("wral: invalid config field %s: %s", e.Field, e.Reason)
}

func invalidConfigErr(field, reason string) error {
	return &InvalidConfigError{Field: field, Reason: reason}
}
