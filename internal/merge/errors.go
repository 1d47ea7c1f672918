package merge

import "errors"

// Warning sources. Merge records these as text; they never fail the call.
var (
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")
	ErrTypeMismatch          = errors.New("type mismatch")
	ErrUnboundBlock          = errors.New("dynamic block not bound")
	ErrInvalidPolicy         = errors.New("invalid unresolved policy")
)
