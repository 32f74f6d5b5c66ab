package order

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"futures-connect-go/errs"
)

// CancelOutcome 撤单对账结果
type CancelOutcome int

const (
	// CancelConfirmed 交易所直接确认了撤单
	CancelConfirmed CancelOutcome = iota
	// CancelTerminalFallback 撤单失败，但查询发现订单已经是终态
	CancelTerminalFallback
	// CancelFailed 撤单失败且无法确认终态
	CancelFailed
)

func (o CancelOutcome) String() string {
	switch o {
	case CancelConfirmed:
		return "confirmed"
	case CancelTerminalFallback:
		return "terminal_fallback"
	case CancelFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CancelResult is the explicit result of a reconciled cancel.
// Err is nil unless Outcome is CancelFailed. CancelErr keeps the cancel
// failure that triggered the fallback, if any.
type CancelResult struct {
	Outcome   CancelOutcome
	Order     *Order
	Err       error
	CancelErr error
}

// OK reports whether the caller should treat the cancel as successful.
func (r CancelResult) OK() bool {
	return r.Outcome != CancelFailed
}

// CancelWithOutcome 撤单并在失败时查询订单状态：
// 已处于终态（FILLED/CANCELED/EXPIRED）的订单视为撤单成功。
func (g *Gateway) CancelWithOutcome(ctx context.Context, symbol, clientOrderID string) CancelResult {
	res := g.reconcileCancel(ctx, symbol, clientOrderID)
	g.stats.record(res.Outcome)
	g.metrics.ObserveCancelOutcome(res.Outcome.String())
	return res
}

func (g *Gateway) reconcileCancel(ctx context.Context, symbol, clientOrderID string) CancelResult {
	o, cancelErr := g.cancelOnce(ctx, symbol, clientOrderID)
	if cancelErr == nil {
		return CancelResult{Outcome: CancelConfirmed, Order: o}
	}

	lg := g.logger.With(zap.String("symbol", symbol), zap.String("clientOrderId", clientOrderID))
	lg.Warn("cancel failed, querying order state",
		zap.String("kind", errs.Kind(cancelErr)),
		zap.Error(cancelErr))

	snapshot, queryErr := g.Query(ctx, symbol, clientOrderID)
	if queryErr != nil {
		lg.Warn("reconcile query failed", zap.Error(queryErr))
		return CancelResult{Outcome: CancelFailed, Err: cancelErr, CancelErr: cancelErr}
	}
	if snapshot == nil || !snapshot.Status.IsTerminal() {
		var status Status
		if snapshot != nil {
			status = snapshot.Status
		}
		lg.Warn("order still live after failed cancel", zap.String("status", string(status)))
		return CancelResult{Outcome: CancelFailed, Order: snapshot, Err: cancelErr, CancelErr: cancelErr}
	}

	lg.Info("cancel reconciled to terminal state", zap.String("status", string(snapshot.Status)))
	return CancelResult{Outcome: CancelTerminalFallback, Order: snapshot, CancelErr: cancelErr}
}

// ReconcileStats 撤单对账统计
type ReconcileStats struct {
	Confirmed        int64
	TerminalFallback int64
	Failed           int64
	LastCancelTime   time.Time
}

type reconcileStats struct {
	mu sync.RWMutex
	s  ReconcileStats
}

func (r *reconcileStats) record(o CancelOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o {
	case CancelConfirmed:
		r.s.Confirmed++
	case CancelTerminalFallback:
		r.s.TerminalFallback++
	default:
		r.s.Failed++
	}
	r.s.LastCancelTime = time.Now()
}

// GetStatistics 获取撤单对账统计信息
func (g *Gateway) GetStatistics() ReconcileStats {
	g.stats.mu.RLock()
	defer g.stats.mu.RUnlock()
	return g.stats.s
}
