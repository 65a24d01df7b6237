package exchange

import (
	"fmt"

	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"
)

// APIError is a non 2xx response or a business error reported by an exchange.
type APIError struct {
	Exchange enum.Exchange
	Status   int
	Code     int64
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error, status: %d, code: %d, msg: %s", e.Exchange, e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return exception.ErrInResponseError
}

// Retryable reports whether the code is a transient error of the exchange.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	_, ok := retryableCodes[e.Exchange][e.Code]
	return ok
}

var retryableCodes = map[enum.Exchange]map[int64]struct{}{
	enum.ExchangeBinance: {
		-1001: {}, // disconnected
		-1003: {}, // too many requests
		-1007: {}, // timeout
		-1008: {}, // server busy
		-1021: {}, // timestamp outside recv window
		-2011: {}, // cancel rejected, unknown order
		-5028: {}, // timestamp outside recv window (sapi)
	},
	enum.ExchangeBybit: {
		10000: {}, // server timeout
		10002: {}, // timestamp outside recv window
		10006: {}, // too many visits
		10016: {}, // server error
	},
	enum.ExchangeOKX: {
		50001: {}, // service temporarily unavailable
		50004: {}, // endpoint request timeout
		50011: {}, // rate limit reached
		50013: {}, // system busy
		50026: {}, // system error
		50102: {}, // timestamp request expired
	},
}
