package exception

import "errors"

var (
	ErrConnectionClose     = errors.New("connection closed")
	ErrStreamNotStarted    = errors.New("stream: not started")
	ErrListenKeyEmpty      = errors.New("stream: empty listen key")
	ErrSessionDegraded     = errors.New("stream: session degraded")
	ErrAuthenticate        = errors.New("stream: authenticate failed")
	ErrSubscribeRejected   = errors.New("stream: subscribe rejected")
	ErrRateLimiterCanceled = errors.New("rate limiter: acquire canceled")
)
