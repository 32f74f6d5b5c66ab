package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-connect-go/order"
)

func TestParseOrderTradeUpdate(t *testing.T) {
	raw := []byte(`{
		"e":"ORDER_TRADE_UPDATE","E":1568879465651,"T":1568879465650,
		"o":{
			"s":"BTCUSDT","c":"TEST","S":"SELL","o":"TRAILING_STOP_MARKET","f":"GTC",
			"q":"0.001","p":"0","ap":"0","sp":"7103.04","x":"NEW","X":"NEW","i":8886774,
			"l":"0","z":"0","L":"0","N":"USDT","n":"0","T":1568879465650,"t":0,
			"b":"0","a":"9.91","m":false,"R":false,"wt":"CONTRACT_PRICE","ot":"TRAILING_STOP_MARKET",
			"ps":"LONG","cp":false,"AP":"7476.89","cr":"5.0","rp":"0"
		}
	}`)
	ev, err := ParseUserData(raw)
	require.NoError(t, err)
	up, ok := ev.(*OrderUpdateEvent)
	require.True(t, ok, "got %T", ev)

	assert.Equal(t, EventOrderTradeUpdate, up.EventType())
	assert.Equal(t, int64(1568879465651), up.EventTime)
	assert.Equal(t, int64(1568879465650), up.TransactionTime)
	o := up.Order
	assert.Equal(t, "BTCUSDT", o.Symbol)
	assert.Equal(t, "TEST", o.ClientOrderID)
	assert.Equal(t, order.SideSell, o.Side)
	assert.Equal(t, order.TypeTrailingStopMarket, o.OrderType)
	assert.Equal(t, order.ExecutionNew, o.ExecutionType)
	assert.Equal(t, order.StatusNew, o.OrderStatus)
	assert.Equal(t, int64(8886774), o.OrderID)
	assert.True(t, o.OrigQty.Equal(decimal.RequireFromString("0.001")))
	// ap 与 AP 不能互相覆盖
	assert.True(t, o.AvgPrice.IsZero())
	assert.True(t, o.ActivationPrice.Equal(decimal.RequireFromString("7476.89")))
	assert.Equal(t, "LONG", o.PositionSide)

	snap := o.Snapshot(up.TransactionTime)
	assert.Equal(t, "TEST", snap.ClientOrderID)
	assert.Equal(t, int64(1568879465650), snap.UpdateTime)
	require.NoError(t, snap.Validate())
}

func TestParseTradeFill(t *testing.T) {
	raw := []byte(`{"e":"ORDER_TRADE_UPDATE","E":2,"T":2,"o":{"s":"ETHUSDT","c":"c1","S":"BUY","o":"LIMIT","f":"GTC","q":"2","p":"1500","ap":"1500","x":"TRADE","X":"PARTIALLY_FILLED","i":1,"l":"0.5","z":"1.5","L":"1500","T":2,"t":99}}`)
	ev, err := ParseUserData(raw)
	require.NoError(t, err)
	o := ev.(*OrderUpdateEvent).Order
	assert.Equal(t, order.ExecutionTrade, o.ExecutionType)
	assert.Equal(t, order.StatusPartiallyFilled, o.OrderStatus)
	assert.True(t, o.LastFilledQty.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, o.CumFilledQty.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, int64(2), o.TradeTime)
	assert.Equal(t, int64(99), o.TradeID)

	snap := o.Snapshot(2)
	assert.True(t, snap.CumQuote.Equal(decimal.RequireFromString("2250")))
}

func TestParseAccountUpdate(t *testing.T) {
	raw := []byte(`{"e":"ACCOUNT_UPDATE","E":1564745798939,"T":1564745798938,"a":{"m":"ORDER",
		"B":[{"a":"USDT","wb":"122624.12345678","cw":"100.12345678","bc":"50.12345678"}],
		"P":[{"s":"BTCUSDT","pa":"0","ep":"0.00000","cr":"200","up":"0","mt":"isolated","iw":"0.00000000","ps":"BOTH"}]}}`)
	ev, err := ParseUserData(raw)
	require.NoError(t, err)
	acc, ok := ev.(*AccountUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "ORDER", acc.Account.Reason)
	require.Len(t, acc.Account.Balances, 1)
	assert.Equal(t, "USDT", acc.Account.Balances[0].Asset)
	require.Len(t, acc.Account.Positions, 1)
	assert.Equal(t, "isolated", acc.Account.Positions[0].MarginType)
}

func TestParseListenKeyExpired(t *testing.T) {
	ev, err := ParseUserData([]byte(`{"e":"listenKeyExpired","E":1576653824250,"listenKey":"OfYGbUzi3PraNagEkdKuFwUHn48brFsItTdsuiIXrucEvD0rhRXZ7I6URWfE8YE8"}`))
	require.NoError(t, err)
	exp, ok := ev.(*ListenKeyExpiredEvent)
	require.True(t, ok)
	assert.Equal(t, EventListenKeyExpired, exp.EventType())
	assert.Equal(t, "OfYGbUzi3PraNagEkdKuFwUHn48brFsItTdsuiIXrucEvD0rhRXZ7I6URWfE8YE8", exp.ListenKey)
}

func TestParseUnknownEventIsNotAnError(t *testing.T) {
	raw := []byte(`{"e":"MARGIN_CALL","E":1587727187525,"cw":"3.16812045","p":[]}`)
	ev, err := ParseUserData(raw)
	require.NoError(t, err)
	unk, ok := ev.(*UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, EventMarginCall, unk.EventType())
	assert.JSONEq(t, string(raw), string(unk.Raw))
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{"e":"ORDER_TRADE_UPDATE","o":{"q":[1]}}`, `[1,2]`} {
		_, err := ParseUserData([]byte(raw))
		assert.Error(t, err, raw)
	}
}
