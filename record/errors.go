package record

import "fmt"

// ErrNoBrowser reports a missing browser binary.
type ErrNoBrowser struct {
	Path string
}

func (e *ErrNoBrowser) Error() string {
	if e.Path == "" {
		return "record: no browser binary configured"
	}
	return fmt.Sprintf("record: no browser binary at %q", e.Path)
}

// ErrRecord wraps a failure while recording one URL.
type ErrRecord struct {
	URL string
	Err error
}

func (e *ErrRecord) Error() string {
	return fmt.Sprintf("record: %s: %v", e.URL, e.Err)
}

func (e *ErrRecord) Unwrap() error { return e.Err }
