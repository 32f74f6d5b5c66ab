package exchange

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"futures-connect-go/errs"
)

// ListenKeyAPI 用户数据流 key 的 REST 接口，由 gateway.BinanceRESTClient 实现。
type ListenKeyAPI interface {
	NewListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, key string) error
	CloseListenKey(ctx context.Context, key string) error
}

// SessionKeyManager 负责 listenKey 的获取、续期和释放。
type SessionKeyManager struct {
	api     ListenKeyAPI
	logger  *zap.Logger
	metrics StreamMetrics
}

func NewSessionKeyManager(api ListenKeyAPI, lg *zap.Logger, m StreamMetrics) *SessionKeyManager {
	if lg == nil {
		lg = zap.NewNop()
	}
	if m == nil {
		m = nopStreamMetrics{}
	}
	return &SessionKeyManager{api: api, logger: lg, metrics: m}
}

// Acquire 获取新 key。失败直接返回，不在这里重试。
func (k *SessionKeyManager) Acquire(ctx context.Context) (string, error) {
	key, err := k.api.NewListenKey(ctx)
	k.metrics.RecordListenKey("acquire", errs.Kind(err))
	if err != nil {
		return "", fmt.Errorf("acquire listenKey: %w", err)
	}
	k.logger.Info("listenKey acquired", zap.String("listenKey", mask(key)))
	return key, nil
}

// Extend 延长 key 有效期。失败只记录，会话继续；key 真过期时由断线重连处理。
func (k *SessionKeyManager) Extend(ctx context.Context, key string) error {
	err := k.api.KeepAliveListenKey(ctx, key)
	k.metrics.RecordListenKey("extend", errs.Kind(err))
	if err != nil {
		k.logger.Warn("listenKey extend failed",
			zap.String("listenKey", mask(key)),
			zap.String("kind", errs.Kind(err)),
			zap.Error(err))
		return err
	}
	k.logger.Debug("listenKey extended", zap.String("listenKey", mask(key)))
	return nil
}

// Release 关闭 key（停止时调用，尽力而为）。
func (k *SessionKeyManager) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := k.api.CloseListenKey(ctx, key)
	k.metrics.RecordListenKey("release", errs.Kind(err))
	if err != nil {
		k.logger.Warn("listenKey release failed", zap.String("listenKey", mask(key)), zap.Error(err))
		return err
	}
	return nil
}

// mask 日志里只保留 key 的前后几位。
func mask(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:4] + "..." + key[len(key)-4:]
}
