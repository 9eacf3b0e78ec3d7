package scanner

import (
	"errors"
	"fmt"
)

// ErrEmptyLibrary is reported when a folder lists fine but contains no
// recognized audio files. It is distinct from a listing failure: the caller
// gets an empty catalog and a reason, not an aborted scan.
var ErrEmptyLibrary = errors.New("no audio files found in folder")

// ScanError wraps a directory listing or permission failure. When a scan
// fails this way no catalog is emitted at all.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan of %s failed: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
