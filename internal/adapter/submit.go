package adapter

import (
	"strings"
	"time"

	"nexus/internal/adapter/enum"
	"nexus/pkg/exception"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

const (
	AlgoUUIDPrefix       = "ALGO-"
	DefaultCheckInterval = 100 * time.Millisecond
)

// NewUUID returns a 32 character hex id, short enough for every exchange's client order id field.
func NewUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewAlgoUUID returns an algo order id in the form "ALGO-<uuid>".
func NewAlgoUUID() string {
	return AlgoUUIDPrefix + uuid.NewString()
}

func IsAlgoUUID(id string) bool {
	return strings.HasPrefix(id, AlgoUUIDPrefix)
}

// OrderSubmit is a command queued to the EMS. It only lives until dispatched.
type OrderSubmit struct {
	SubmitType   enum.SubmitType
	InstrumentID InstrumentID
	UUID         string

	Side         enum.OrderSide
	Type         enum.OrderType
	Amount       decimal.Decimal
	Price        decimal.Decimal
	TimeInForce  enum.OrderTimeInForce
	PositionSide enum.PositionSide
	TriggerPrice decimal.Decimal
	TriggerType  enum.TriggerType
	ReduceOnly   bool

	Duration       time.Duration
	Wait           time.Duration
	CheckInterval  time.Duration
	TriggerTPRatio float64
	TriggerSLRatio float64
	TPRatio        float64
	SLRatio        float64

	// AlgoUUID is set on child orders placed by an algo order.
	AlgoUUID string
	Extra    map[string]string
}

// OrderParams are the fields of a plain order command.
type OrderParams struct {
	Side         enum.OrderSide
	Type         enum.OrderType
	Amount       decimal.Decimal
	Price        decimal.Decimal
	TimeInForce  enum.OrderTimeInForce
	PositionSide enum.PositionSide
	TriggerPrice decimal.Decimal
	TriggerType  enum.TriggerType
	ReduceOnly   bool
	Extra        map[string]string
}

// AlgoParams are the fields of a TWAP or adaptive maker command.
type AlgoParams struct {
	Side           enum.OrderSide
	Amount         decimal.Decimal
	Duration       time.Duration
	Wait           time.Duration
	CheckInterval  time.Duration
	PositionSide   enum.PositionSide
	ReduceOnly     bool
	TriggerTPRatio float64
	TriggerSLRatio float64
	TPRatio        float64
	SLRatio        float64
	Extra          map[string]string
}

// NewOrderSubmit builds a CREATE command, or STOP_LOSS / TAKE_PROFIT when the order type is a trigger type.
func NewOrderSubmit(id InstrumentID, p OrderParams) OrderSubmit {
	submitType := enum.SubmitTypeCreate
	switch {
	case p.Type.IsStopLoss():
		submitType = enum.SubmitTypeStopLoss
	case p.Type.IsTakeProfit():
		submitType = enum.SubmitTypeTakeProfit
	}

	tif := p.TimeInForce
	if !tif.IsAvailable() {
		tif = enum.OrderTimeInForceGTC
	}
	trigger := p.TriggerType
	if !trigger.IsAvailable() {
		trigger = enum.TriggerTypeLastPrice
	}

	return OrderSubmit{
		SubmitType:   submitType,
		InstrumentID: id,
		UUID:         NewUUID(),
		Side:         p.Side,
		Type:         p.Type,
		Amount:       p.Amount,
		Price:        p.Price,
		TimeInForce:  tif,
		PositionSide: p.PositionSide,
		TriggerPrice: p.TriggerPrice,
		TriggerType:  trigger,
		ReduceOnly:   p.ReduceOnly,
		Extra:        p.Extra,
	}
}

// NewCancelSubmit builds a CANCEL command for an order known by its uuid.
func NewCancelSubmit(id InstrumentID, orderUUID string) OrderSubmit {
	return OrderSubmit{
		SubmitType:   enum.SubmitTypeCancel,
		InstrumentID: id,
		UUID:         orderUUID,
	}
}

// NewTwapSubmit builds a TWAP command. It fails with exception.ErrOrder when wait exceeds duration.
func NewTwapSubmit(id InstrumentID, p AlgoParams) (OrderSubmit, error) {
	return newAlgoSubmit(enum.SubmitTypeTwap, id, p)
}

// NewAdpMakerSubmit builds an adaptive maker command. It fails with exception.ErrOrder when wait exceeds duration.
func NewAdpMakerSubmit(id InstrumentID, p AlgoParams) (OrderSubmit, error) {
	return newAlgoSubmit(enum.SubmitTypeAdpMaker, id, p)
}

// NewCancelAlgoSubmit builds CANCEL_TWAP or CANCEL_ADP_MAKER depending on kind.
func NewCancelAlgoSubmit(id InstrumentID, algoUUID string, kind enum.SubmitType) OrderSubmit {
	submitType := enum.SubmitTypeCancelTwap
	if kind == enum.SubmitTypeAdpMaker || kind == enum.SubmitTypeCancelAdpMaker {
		submitType = enum.SubmitTypeCancelAdpMaker
	}
	return OrderSubmit{
		SubmitType:   submitType,
		InstrumentID: id,
		UUID:         algoUUID,
	}
}

func newAlgoSubmit(submitType enum.SubmitType, id InstrumentID, p AlgoParams) (OrderSubmit, error) {
	checkInterval := p.CheckInterval
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}

	s := OrderSubmit{
		SubmitType:     submitType,
		InstrumentID:   id,
		UUID:           NewAlgoUUID(),
		Side:           p.Side,
		Type:           enum.OrderTypeLimit,
		Amount:         p.Amount,
		TimeInForce:    enum.OrderTimeInForceGTC,
		PositionSide:   p.PositionSide,
		ReduceOnly:     p.ReduceOnly,
		Duration:       p.Duration,
		Wait:           p.Wait,
		CheckInterval:  checkInterval,
		TriggerTPRatio: p.TriggerTPRatio,
		TriggerSLRatio: p.TriggerSLRatio,
		TPRatio:        p.TPRatio,
		SLRatio:        p.SLRatio,
		Extra:          p.Extra,
	}
	if err := s.Validate(); err != nil {
		return OrderSubmit{}, err
	}
	return s, nil
}

// Validate checks the fields required by the submit type.
func (s OrderSubmit) Validate() error {
	if !s.SubmitType.IsAvailable() {
		return errors.Wrapf(exception.ErrOrder, "unknown submit type: %d", s.SubmitType)
	}
	if len(s.UUID) == 0 {
		return errors.Wrap(exception.ErrOrder, "empty uuid")
	}

	switch s.SubmitType {
	case enum.SubmitTypeCreate, enum.SubmitTypeStopLoss, enum.SubmitTypeTakeProfit:
		if !s.Side.IsAvailable() || !s.Type.IsAvailable() {
			return errors.Wrap(exception.ErrOrder, "missing side or type").With("uuid", s.UUID)
		}
		if !s.Amount.IsPositive() {
			return errors.Wrap(exception.ErrOrder, "amount must be positive").With("uuid", s.UUID)
		}
	case enum.SubmitTypeTwap, enum.SubmitTypeAdpMaker:
		if !s.Side.IsAvailable() {
			return errors.Wrap(exception.ErrOrder, "missing side").With("uuid", s.UUID)
		}
		if !s.Amount.IsPositive() {
			return errors.Wrap(exception.ErrOrder, "amount must be positive").With("uuid", s.UUID)
		}
		if s.Duration <= 0 || s.Wait <= 0 {
			return errors.Wrap(exception.ErrOrder, "duration and wait must be positive").With("uuid", s.UUID)
		}
		if s.Wait > s.Duration {
			return errors.Wrapf(exception.ErrOrder, "wait %s must be less than duration %s", s.Wait, s.Duration)
		}
	}
	return nil
}

// OrderRequest converts a plain order command into a connector request.
func (s OrderSubmit) OrderRequest() OrderRequest {
	return OrderRequest{
		Symbol:        s.InstrumentID.Symbol,
		ClientOrderID: s.UUID,
		Side:          s.Side,
		Type:          s.Type,
		Amount:        s.Amount,
		Price:         s.Price,
		TimeInForce:   s.TimeInForce,
		PositionSide:  s.PositionSide,
		TriggerPrice:  s.TriggerPrice,
		TriggerType:   s.TriggerType,
		ReduceOnly:    s.ReduceOnly,
		Extra:         s.Extra,
	}
}
