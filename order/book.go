package order

import "sync"

// Book 按 clientOrderId 记录订单的最新快照，来源可以是 REST 响应也可以是推送事件。
// 旧快照（updateTime 更小）和终态之后的非终态快照会被忽略。
type Book struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewBook() *Book {
	return &Book{orders: make(map[string]Order)}
}

// Apply 写入快照，返回是否被采纳。
func (b *Book) Apply(o Order) bool {
	if o.ClientOrderID == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.orders[o.ClientOrderID]
	if ok {
		if o.UpdateTime < cur.UpdateTime {
			return false
		}
		if cur.Status.IsTerminal() && !o.Status.IsTerminal() {
			return false
		}
	}
	b.orders[o.ClientOrderID] = o
	return true
}

func (b *Book) Get(clientOrderID string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[clientOrderID]
	return o, ok
}

// Active 返回仍可能成交的订单。
func (b *Book) Active() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]Order, 0)
	for _, o := range b.orders {
		if o.Status.IsActive() {
			res = append(res, o)
		}
	}
	return res
}
