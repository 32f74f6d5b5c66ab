package gateway

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"futures-connect-go/order"
)

// 用户数据流事件类型（字段 "e"）。
const (
	EventOrderTradeUpdate = "ORDER_TRADE_UPDATE"
	EventAccountUpdate    = "ACCOUNT_UPDATE"
	EventListenKeyExpired = "listenKeyExpired"
	EventMarginCall       = "MARGIN_CALL"
)

// Event 是用户数据流消息的和类型：
// *OrderUpdateEvent / *AccountUpdateEvent / *ListenKeyExpiredEvent / *UnknownEvent。
type Event interface {
	EventType() string
}

// EventHeader 所有事件共有的字段。
type EventHeader struct {
	Type            string `json:"e"`
	EventTime       int64  `json:"E"`
	TransactionTime int64  `json:"T"`
}

func (h EventHeader) EventType() string { return h.Type }

// OrderTradeUpdate 是 ORDER_TRADE_UPDATE 中的 "o" 对象。
// 大小写不同的同名 key（x/X、l/L、t/T、ap/AP）都要显式声明，否则会被大小写不敏感匹配覆盖。
type OrderTradeUpdate struct {
	Symbol          string              `json:"s"`
	ClientOrderID   string              `json:"c"`
	Side            order.Side          `json:"S"`
	OrderType       order.Type          `json:"o"`
	TimeInForce     order.TimeInForce   `json:"f"`
	OrigQty         decimal.Decimal     `json:"q"`
	Price           decimal.Decimal     `json:"p"`
	AvgPrice        decimal.Decimal     `json:"ap"`
	ActivationPrice decimal.Decimal     `json:"AP"`
	ExecutionType   order.ExecutionType `json:"x"`
	OrderStatus     order.Status        `json:"X"`
	OrderID         int64               `json:"i"`
	LastFilledQty   decimal.Decimal     `json:"l"`
	CumFilledQty    decimal.Decimal     `json:"z"`
	LastFilledPrice decimal.Decimal     `json:"L"`
	TradeTime       int64               `json:"T"`
	TradeID         int64               `json:"t"`
	ReduceOnly      bool                `json:"R"`
	PositionSide    string              `json:"ps"`
	RealizedProfit  decimal.Decimal     `json:"rp"`
}

// Snapshot 转成 order.Order，便于写入 order.Book。
func (u OrderTradeUpdate) Snapshot(updateTime int64) order.Order {
	return order.Order{
		OrderID:       u.OrderID,
		Symbol:        u.Symbol,
		Status:        u.OrderStatus,
		ClientOrderID: u.ClientOrderID,
		Price:         u.Price,
		AvgPrice:      u.AvgPrice,
		OrigQty:       u.OrigQty,
		ExecutedQty:   u.CumFilledQty,
		CumQuote:      u.AvgPrice.Mul(u.CumFilledQty),
		TimeInForce:   u.TimeInForce,
		Type:          u.OrderType,
		Side:          u.Side,
		UpdateTime:    updateTime,
	}
}

// OrderUpdateEvent ORDER_TRADE_UPDATE
type OrderUpdateEvent struct {
	EventHeader
	Order OrderTradeUpdate `json:"o"`
}

// Balance ACCOUNT_UPDATE 中的余额变动。
type Balance struct {
	Asset              string          `json:"a"`
	WalletBalance      decimal.Decimal `json:"wb"`
	CrossWalletBalance decimal.Decimal `json:"cw"`
	BalanceChange      decimal.Decimal `json:"bc"`
}

// Position ACCOUNT_UPDATE 中的持仓变动。
type Position struct {
	Symbol         string          `json:"s"`
	Amount         decimal.Decimal `json:"pa"`
	EntryPrice     decimal.Decimal `json:"ep"`
	UnrealizedPnL  decimal.Decimal `json:"up"`
	MarginType     string          `json:"mt"`
	IsolatedWallet decimal.Decimal `json:"iw"`
	PositionSide   string          `json:"ps"`
}

// AccountUpdate 是 ACCOUNT_UPDATE 中的 "a" 对象。
type AccountUpdate struct {
	Reason    string     `json:"m"`
	Balances  []Balance  `json:"B"`
	Positions []Position `json:"P"`
}

// AccountUpdateEvent ACCOUNT_UPDATE
type AccountUpdateEvent struct {
	EventHeader
	Account AccountUpdate `json:"a"`
}

// ListenKeyExpiredEvent listenKeyExpired：服务端已关闭连接或即将关闭。
type ListenKeyExpiredEvent struct {
	EventHeader
	ListenKey string `json:"listenKey"`
}

// UnknownEvent 未识别的事件类型，保留原文；不是解析错误。
type UnknownEvent struct {
	EventHeader
	Raw json.RawMessage `json:"-"`
}

// ParseUserData 解析一条用户数据流文本消息。
// 只有 JSON 本身不合法时返回 error；未知的事件类型返回 *UnknownEvent。
func ParseUserData(raw []byte) (Event, error) {
	var head EventHeader
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode event header: %w", err)
	}

	switch head.Type {
	case EventOrderTradeUpdate:
		var ev OrderUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return &ev, nil
	case EventAccountUpdate:
		var ev AccountUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return &ev, nil
	case EventListenKeyExpired:
		var ev ListenKeyExpiredEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return &ev, nil
	default:
		return &UnknownEvent{EventHeader: head, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
