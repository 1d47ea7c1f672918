package artifact

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported artifact format")
	ErrEncodeFailed      = errors.New("artifact encoding failed")
)
