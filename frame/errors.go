package frame

import "errors"

var (
	// ErrUnsupportedKind is reported for frames whose kind cannot be duplicated.
	ErrUnsupportedKind = errors.New("frame: unsupported frame kind")
	// ErrParentMissing is reported for frames dropped because their parent is not registered.
	ErrParentMissing = errors.New("frame: parent not registered")
)
