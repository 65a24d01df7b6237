package exception

import "errors"

var (
	// ErrOrder is returned when an order command is malformed, e.g. an algo order whose wait exceeds its duration.
	ErrOrder = errors.New("order: invalid order")

	ErrOrderUnsupportedType      = errors.New("order: unsupported type")
	ErrOrderMissingPrice         = errors.New("order: price is required for limit order")
	ErrOrderMissingTriggerPrice  = errors.New("order: trigger price is required")
	ErrOrderEmptyResponseOrderID = errors.New("order: empty response order id")
	ErrOrderQueueClosed          = errors.New("order: queue closed")
	ErrOrderUnknownUUID          = errors.New("order: unknown uuid")
	ErrOrderUnknownAlgo          = errors.New("order: unknown algo order")
	ErrOrderNoAccount            = errors.New("order: no account type for instrument")
)
