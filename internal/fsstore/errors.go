package fsstore

import "errors"

var (
	ErrInvalidPath       = errors.New("fsstore: invalid path")
	ErrDecodeFailed      = errors.New("fsstore: decode failed")
	ErrEncodeFailed      = errors.New("fsstore: encode failed")
	ErrAtomicWriteFailed = errors.New("fsstore: atomic write failed")
	ErrLockUnavailable   = errors.New("fsstore: lock unavailable")
	ErrLockTimeout       = errors.New("fsstore: lock timeout")
)
