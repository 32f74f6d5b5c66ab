package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futures-connect-go/errs"
)

// Status is the exchange-reported order lifecycle state.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusExpired         Status = "EXPIRED"
	StatusNewInsurance    Status = "NEW_INSURANCE"
	StatusNewADL          Status = "NEW_ADL"
)

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Type 订单类型。
type Type string

const (
	TypeLimit              Type = "LIMIT"
	TypeMarket             Type = "MARKET"
	TypeStop               Type = "STOP"
	TypeStopMarket         Type = "STOP_MARKET"
	TypeTakeProfit         Type = "TAKE_PROFIT"
	TypeTakeProfitMarket   Type = "TAKE_PROFIT_MARKET"
	TypeTrailingStopMarket Type = "TRAILING_STOP_MARKET"
)

// TimeInForce 有效方式；GTX 即 post-only。
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceGTX TimeInForce = "GTX"
)

// ExecutionType is the `x` field of an order trade update.
type ExecutionType string

const (
	ExecutionNew        ExecutionType = "NEW"
	ExecutionCanceled   ExecutionType = "CANCELED"
	ExecutionCalculated ExecutionType = "CALCULATED"
	ExecutionExpired    ExecutionType = "EXPIRED"
	ExecutionTrade      ExecutionType = "TRADE"
	ExecutionAmendment  ExecutionType = "AMENDMENT"
)

// Order is the exchange snapshot returned by place/query/cancel.
// OrderID stays zero until the exchange has answered at least once.
type Order struct {
	OrderID       int64           `json:"orderId"`
	Symbol        string          `json:"symbol"`
	Status        Status          `json:"status"`
	ClientOrderID string          `json:"clientOrderId"`
	Price         decimal.Decimal `json:"price"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	CumQuote      decimal.Decimal `json:"cumQuote"`
	TimeInForce   TimeInForce     `json:"timeInForce"`
	Type          Type            `json:"type"`
	Side          Side            `json:"side"`
	UpdateTime    int64           `json:"updateTime"`
}

// Validate checks the snapshot invariants.
func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("nil order")
	}
	if o.ExecutedQty.GreaterThan(o.OrigQty) {
		return fmt.Errorf("order %s: executedQty %s exceeds origQty %s", o.ClientOrderID, o.ExecutedQty, o.OrigQty)
	}
	return nil
}

// PlaceRequest carries the parameters of POST /order.
type PlaceRequest struct {
	Symbol        string
	ClientOrderID string
	Type          Type
	Side          Side
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	TimeInForce   TimeInForce
}

// Validate rejects requests the exchange would refuse for shape reasons.
func (r PlaceRequest) Validate() error {
	if r.Symbol == "" {
		return errs.NewValidationError("symbol", "required")
	}
	if r.ClientOrderID == "" {
		return errs.NewValidationError("clientOrderId", "required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return errs.NewValidationError("side", "invalid %q", r.Side)
	}
	if r.Type == "" {
		return errs.NewValidationError("type", "required")
	}
	if !r.Quantity.IsPositive() {
		return errs.NewValidationError("quantity", "must be > 0")
	}
	if r.Type == TypeLimit && !r.Price.IsPositive() {
		return errs.NewValidationError("price", "limit price must be > 0")
	}
	return nil
}
