package order

import (
	"github.com/shopspring/decimal"

	"futures-connect-go/errs"
)

// SymbolConstraints 描述交易对的步长与名义限制。零值表示不限制。
type SymbolConstraints struct {
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// Validate 检查订单价格/数量是否符合精度与最小名义。
// 市价单 price 为零，跳过价格和名义检查。
func (c SymbolConstraints) Validate(price, qty decimal.Decimal) error {
	if !price.IsZero() && !isMultiple(price, c.TickSize) {
		return errs.NewValidationError("price", "%s not aligned to tickSize %s", price, c.TickSize)
	}
	if !isMultiple(qty, c.StepSize) {
		return errs.NewValidationError("quantity", "%s not aligned to stepSize %s", qty, c.StepSize)
	}
	if c.MinQty.IsPositive() && qty.LessThan(c.MinQty) {
		return errs.NewValidationError("quantity", "%s < minQty %s", qty, c.MinQty)
	}
	if c.MaxQty.IsPositive() && qty.GreaterThan(c.MaxQty) {
		return errs.NewValidationError("quantity", "%s > maxQty %s", qty, c.MaxQty)
	}
	if !price.IsZero() && c.MinNotional.IsPositive() {
		if notional := price.Mul(qty); notional.LessThan(c.MinNotional) {
			return errs.NewValidationError("notional", "%s < minNotional %s", notional, c.MinNotional)
		}
	}
	return nil
}

func isMultiple(value, step decimal.Decimal) bool {
	if !step.IsPositive() {
		return true
	}
	return value.Mod(step).IsZero()
}
