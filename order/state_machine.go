package order

// 交易所是订单状态的唯一权威来源：这里不维护转换表，只对拿到的状态做分类。

// IsTerminal 判断是否是终态（FILLED / CANCELED / EXPIRED），终态之后不会再有任何变化。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// IsActive 判断是否是活跃状态（可能产生成交）
func (s Status) IsActive() bool {
	switch s {
	case StatusNew, StatusPartiallyFilled, StatusNewInsurance, StatusNewADL:
		return true
	default:
		return false
	}
}

// Known reports whether s is one of the documented futures statuses.
func (s Status) Known() bool {
	return s.IsTerminal() || s.IsActive()
}

// AllStatuses lists every documented status, terminal ones last.
func AllStatuses() []Status {
	return []Status{
		StatusNew,
		StatusPartiallyFilled,
		StatusNewInsurance,
		StatusNewADL,
		StatusFilled,
		StatusCanceled,
		StatusExpired,
	}
}
