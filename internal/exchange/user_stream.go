package exchange

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"futures-connect-go/errs"
	"futures-connect-go/gateway"
)

const (
	writeWait      = 10 * time.Second
	requestTimeout = 10 * time.Second
	releaseTimeout = 5 * time.Second
)

var (
	ErrSessionNotStarted = errors.New("user stream not started")
	ErrSessionStopped    = errors.New("user stream stopped")
)

// StreamMetrics 用户数据流指标，由 monitor.Monitor 实现。
type StreamMetrics interface {
	RecordWSConnection()
	RecordWSDisconnect(reason string)
	RecordReconnect()
	RecordActivity(at time.Time)
	RecordListenKey(op, outcome string)
	RecordEventRouted(eventType string)
	RecordEventDropped(reason string)
}

type nopStreamMetrics struct{}

func (nopStreamMetrics) RecordWSConnection()            {}
func (nopStreamMetrics) RecordWSDisconnect(string)      {}
func (nopStreamMetrics) RecordReconnect()               {}
func (nopStreamMetrics) RecordActivity(time.Time)       {}
func (nopStreamMetrics) RecordListenKey(string, string) {}
func (nopStreamMetrics) RecordEventRouted(string)       {}
func (nopStreamMetrics) RecordEventDropped(string)      {}

// StreamConfig 用户数据流参数。
type StreamConfig struct {
	WSEndpoint              string        // 例如 wss://fstream.binance.com
	RenewInterval           time.Duration // listenKey 续期周期
	KeepaliveInterval       time.Duration // ping + 活跃度检查周期
	StaleAfter              time.Duration // 超过该时长无入站帧则强制重连
	HandshakeTimeout        time.Duration
	ReconnectInitialBackoff time.Duration
	ReconnectMaxBackoff     time.Duration
	MaxMessageSize          int64
}

// DefaultStreamConfig 默认值：续期 50 分钟，keepalive 5 分钟，10 分钟无数据视为断线。
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		WSEndpoint:              "wss://fstream.binance.com",
		RenewInterval:           50 * time.Minute,
		KeepaliveInterval:       5 * time.Minute,
		StaleAfter:              10 * time.Minute,
		HandshakeTimeout:        10 * time.Second,
		ReconnectInitialBackoff: 500 * time.Millisecond,
		ReconnectMaxBackoff:     time.Minute,
		MaxMessageSize:          64 << 10,
	}
}

func (c StreamConfig) withDefaults() StreamConfig {
	d := DefaultStreamConfig()
	if c.WSEndpoint == "" {
		c.WSEndpoint = d.WSEndpoint
	}
	if c.RenewInterval <= 0 {
		c.RenewInterval = d.RenewInterval
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = d.KeepaliveInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReconnectInitialBackoff <= 0 {
		c.ReconnectInitialBackoff = d.ReconnectInitialBackoff
	}
	if c.ReconnectMaxBackoff <= 0 {
		c.ReconnectMaxBackoff = d.ReconnectMaxBackoff
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// StreamSession 管理 UserStream WebSocket：listenKey 获取/续期、keepalive、断线换新 key 重连。
//
// 状态：DISCONNECTED → CONNECTING → CONNECTED → DISCONNECTED。
// Stop 之后不会再自动重连。
type StreamSession struct {
	cfg     StreamConfig
	keys    *SessionKeyManager
	router  *EventRouter
	logger  *zap.Logger
	metrics StreamMetrics
	dialer  *websocket.Dialer
	now     func() time.Time

	state sessionState

	connectMu sync.Mutex // 串行化 Connect（调用方和重连循环）

	mu           sync.Mutex
	started      bool
	stopped      bool
	ctx          context.Context
	cancel       context.CancelFunc
	tasks        *conc.WaitGroup // renew / keepalive / reconnect
	tasksRunning bool
	readers      *conc.WaitGroup
	reconnectCh  chan string // 携带需要释放的旧 key
	onConnected  func(ctx context.Context)
}

func NewStreamSession(cfg StreamConfig, keys *SessionKeyManager, router *EventRouter, lg *zap.Logger, m StreamMetrics) *StreamSession {
	if lg == nil {
		lg = zap.NewNop()
	}
	if m == nil {
		m = nopStreamMetrics{}
	}
	if router == nil {
		router = NewEventRouter(nil, lg, m)
	}
	return &StreamSession{
		cfg:         cfg.withDefaults(),
		keys:        keys,
		router:      router,
		logger:      lg,
		metrics:     m,
		now:         time.Now,
		tasks:       conc.NewWaitGroup(),
		readers:     conc.NewWaitGroup(),
		reconnectCh: make(chan string, 1),
	}
}

// OnConnected 注册每次（重）连接成功后执行的回调，例如用 REST 补齐断线期间的订单状态。
// 回调在 Connect 内同步执行，不能再调用 Connect。
func (s *StreamSession) OnConnected(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnected = fn
}

// Start 准备 dialer 和生命周期 context，不建立连接。可重复调用。
func (s *StreamSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSessionStopped
	}
	if s.started {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if s.dialer == nil {
		s.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: s.cfg.HandshakeTimeout,
		}
	}
	s.started = true
	return nil
}

// Connect 获取新 listenKey 并连接 {wsBase}/ws/{key}。已连接时直接返回。
func (s *StreamSession) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrSessionNotStarted
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	sessCtx := s.ctx
	s.mu.Unlock()

	if s.state.snapshot().State == StateConnected {
		return nil
	}

	// 调用方 ctx 或会话 ctx 任一结束都中止拨号
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sessCtx, cancel)
	defer stop()

	s.state.connecting()
	key, err := s.keys.Acquire(ctx)
	if err != nil {
		s.state.abort()
		return err
	}

	url := strings.TrimRight(s.cfg.WSEndpoint, "/") + "/ws/" + key
	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		s.state.abort()
		return errs.NewTransportError("dial user stream", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		s.state.abort()
		return ErrSessionStopped
	}
	now := s.now()
	gen := s.state.install(key, conn, now)
	s.prepareConn(gen, conn)
	s.readers.Go(func() { s.readLoop(gen, conn) })
	s.startTasksLocked()
	hook := s.onConnected
	s.mu.Unlock()

	s.metrics.RecordWSConnection()
	s.metrics.RecordActivity(now)
	s.logger.Info("user stream connected",
		zap.String("listenKey", mask(key)),
		zap.Uint64("generation", gen))
	if hook != nil {
		hook(sessCtx)
	}
	return nil
}

// Stop 按顺序：禁止重连，取消并等待后台任务，关闭连接，等待读循环退出，释放 listenKey。
func (s *StreamSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	if !started {
		return
	}

	s.tasks.Wait()

	conn, key, _ := s.state.clear(0)
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
		s.metrics.RecordWSDisconnect("stop")
	}
	s.readers.Wait()

	if key == "" {
		// 断线后还没来得及重连的旧 key
		select {
		case key = <-s.reconnectCh:
		default:
		}
	}
	if key != "" {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		_ = s.keys.Release(ctx, key)
		cancel()
	}
	s.logger.Info("user stream stopped")
}

// State 返回会话状态快照。
func (s *StreamSession) State() SessionSnapshot {
	return s.state.snapshot()
}

func (s *StreamSession) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// startTasksLocked 在首次连接成功后启动后台任务，调用方持有 s.mu。
func (s *StreamSession) startTasksLocked() {
	if s.tasksRunning {
		return
	}
	s.tasksRunning = true
	ctx := s.ctx
	s.tasks.Go(func() { s.renewLoop(ctx) })
	s.tasks.Go(func() { s.keepaliveLoop(ctx) })
	s.tasks.Go(func() { s.reconnectLoop(ctx) })
}

func (s *StreamSession) touch(gen uint64) {
	now := s.now()
	s.state.touch(gen, now)
	s.metrics.RecordActivity(now)
}

// prepareConn 任何入站帧（含 ping/pong）都刷新活动时间。
func (s *StreamSession) prepareConn(gen uint64, conn *websocket.Conn) {
	conn.SetReadLimit(s.cfg.MaxMessageSize)
	conn.SetPingHandler(func(data string) error {
		s.touch(gen)
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == nil || errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		s.touch(gen)
		return nil
	})
}

// readLoop 读取 WS 消息并交给 router。
func (s *StreamSession) readLoop(gen uint64, conn *websocket.Conn) {
	reason := "closed"
	defer func() { s.handleClosed(gen, reason) }()
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if !s.isStopped() {
				s.logger.Warn("user stream read failed", zap.Uint64("generation", gen), zap.Error(err))
			}
			return
		}
		s.touch(gen)
		switch mt {
		case websocket.TextMessage:
			if _, expired := s.router.Route(msg).(*gateway.ListenKeyExpiredEvent); expired {
				s.logger.Warn("listenKey expired, reconnecting", zap.Uint64("generation", gen))
				reason = "listen_key_expired"
				return
			}
		case websocket.BinaryMessage:
			s.router.RouteBinary(msg)
		}
	}
}

// handleClosed 清理 gen 这一代并触发重连；Stop 期间只做清理。
func (s *StreamSession) handleClosed(gen uint64, reason string) {
	if s.isStopped() {
		return
	}
	conn, key, ok := s.state.clear(gen)
	if !ok {
		return
	}
	_ = conn.Close()
	s.metrics.RecordWSDisconnect(reason)
	s.logger.Warn("user stream disconnected", zap.Uint64("generation", gen), zap.String("reason", reason))
	select {
	case s.reconnectCh <- key:
	default:
	}
}

func (s *StreamSession) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case old := <-s.reconnectCh:
			s.reconnect(ctx, old)
		}
	}
}

// reconnect 释放旧 key，然后指数退避地重新 Connect（每次都会获取新 key）。
func (s *StreamSession) reconnect(ctx context.Context, oldKey string) {
	s.metrics.RecordReconnect()
	if oldKey != "" {
		rctx, cancel := context.WithTimeout(ctx, releaseTimeout)
		_ = s.keys.Release(rctx, oldKey)
		cancel()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.ReconnectInitialBackoff
	b.MaxInterval = s.cfg.ReconnectMaxBackoff
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.Connect(ctx)
		if errors.Is(err, ErrSessionStopped) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("user stream reconnect failed",
				zap.Int("attempt", attempt),
				zap.Duration("retryIn", next),
				zap.String("kind", errs.Kind(err)),
				zap.Error(err))
		}),
	)
	if err != nil && ctx.Err() == nil && !errors.Is(err, ErrSessionStopped) {
		s.logger.Error("user stream reconnect gave up", zap.Error(err))
	}
}

// renewLoop 定期延长当前 listenKey；失败只记录。
func (s *StreamSession) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RenewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			key := s.state.snapshot().ListenKey
			if key == "" {
				continue
			}
			rctx, cancel := context.WithTimeout(ctx, requestTimeout)
			_ = s.keys.Extend(rctx, key)
			cancel()
		}
	}
}

// keepaliveLoop 定期 ping；超过 StaleAfter 没有入站帧就关闭连接，走正常重连。
func (s *StreamSession) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn, gen, last := s.state.current()
			if conn == nil {
				continue
			}
			if idle := s.now().Sub(last); idle > s.cfg.StaleAfter {
				s.logger.Warn("user stream stale, forcing reconnect",
					zap.Uint64("generation", gen),
					zap.Duration("idle", idle))
				_ = conn.Close()
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Warn("user stream ping failed", zap.Uint64("generation", gen), zap.Error(err))
			}
		}
	}
}
