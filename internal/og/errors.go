package og

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidFill       = errors.New("filled amount decreased")
	ErrOrderTerminated   = errors.New("order already terminated")
)
