package order

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"futures-connect-go/errs"
)

// RetryPolicy 查询/撤单共用的有界重试配置。
type RetryPolicy struct {
	MaxAttempts uint          // 总尝试次数（含第一次）
	Wait        time.Duration // 固定间隔
}

// DefaultRetryPolicy 3 次尝试，间隔 100ms。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Wait: 100 * time.Millisecond}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}
	if p.Wait < 0 {
		p.Wait = 0
	}
	return p
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or the policy is
// exhausted. The last observed error is returned unwrapped, also when ctx expires while
// waiting between attempts; if no attempt finished the ctx error becomes a TransportError.
func withRetry[T any](ctx context.Context, policy RetryPolicy, op string, lg *zap.Logger, metrics Metrics, fn func(context.Context) (T, error)) (T, error) {
	policy = policy.normalized()
	attempt := 0
	var lastErr error
	operation := func() (T, error) {
		attempt++
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !errs.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(policy.Wait)),
		backoff.WithMaxTries(policy.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			lg.Warn("retrying order call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.String("kind", errs.Kind(err)),
				zap.Error(err))
			metrics.ObserveRetry(op, errs.Kind(err))
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return res, perm.Unwrap()
	}
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if lastErr != nil {
			return res, lastErr
		}
		return res, errs.NewTransportError(op, err)
	}
	return res, err
}
