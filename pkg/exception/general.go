package exception

import "errors"

// General errors
var (
	ErrNilInstance      = errors.New("nil instance")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInternal         = errors.New("internal error")
	ErrInResponseError  = errors.New("there is an error in response error field")
	ErrDecodePayload    = errors.New("decode payload")
	ErrUnknownEventType = errors.New("unknown event type")
)
