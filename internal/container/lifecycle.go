package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"futures-connect-go/internal/exchange"
)

// Lifecycle 由容器按注册顺序启动、逆序停止的组件。
type Lifecycle interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

type LifecycleManager struct {
	mu         sync.Mutex
	components []Lifecycle
	started    int // 已启动的前缀长度
	logger     *zap.Logger
}

func NewLifecycleManager(lg *zap.Logger) *LifecycleManager {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &LifecycleManager{logger: lg}
}

func (m *LifecycleManager) Register(c Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, c)
}

// StartAll 按顺序启动；任一失败时逆序停止已启动的组件。
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.components[m.started:] {
		if err := c.Start(ctx); err != nil {
			if rbErr := m.stopLocked(); rbErr != nil {
				m.logger.Warn("rollback after failed start", zap.Error(rbErr))
			}
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}
		m.logger.Debug("component started", zap.String("component", c.Name()))
		m.started++
	}
	return nil
}

// StopAll 逆序停止已启动的组件，返回所有停止错误。
func (m *LifecycleManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *LifecycleManager) stopLocked() error {
	var errs []error
	for ; m.started > 0; m.started-- {
		c := m.components[m.started-1]
		if err := c.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *LifecycleManager) CheckHealth() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, c := range m.components {
		if err := c.Health(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// httpServerComponent 在 Start 里同步监听，端口占用直接作为启动错误返回。
type httpServerComponent struct {
	name    string
	addr    string
	handler http.Handler
	logger  *zap.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func (h *httpServerComponent) Name() string { return h.name }

func (h *httpServerComponent) Start(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}
	srv := &http.Server{Handler: h.handler, ReadHeaderTimeout: 5 * time.Second}
	h.srv, h.ln = srv, ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("http server exited", zap.String("component", h.name), zap.Error(err))
		}
	}()
	h.logger.Info("http server listening", zap.String("component", h.name), zap.String("addr", ln.Addr().String()))
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.srv.Shutdown(ctx)
	h.srv, h.ln = nil, nil
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	h.logger.Info("http server stopped", zap.String("component", h.name))
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.srv == nil {
		return errors.New("not serving")
	}
	return nil
}

// Addr 实际监听地址，未启动时为空。
func (h *httpServerComponent) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln == nil {
		return ""
	}
	return h.ln.Addr().String()
}

// streamComponent 用户数据流：启动即连接，停止时释放 listenKey。
type streamComponent struct {
	exchange *exchange.Exchange
}

func (s *streamComponent) Name() string { return s.exchange.Name() + "_user_stream" }

func (s *streamComponent) Start(ctx context.Context) error {
	if err := s.exchange.Start(); err != nil {
		return err
	}
	if err := s.exchange.Connect(ctx); err != nil {
		s.exchange.Stop()
		return err
	}
	return nil
}

func (s *streamComponent) Stop() error {
	s.exchange.Stop()
	return nil
}

func (s *streamComponent) Health() error {
	if st := s.exchange.State(); st.State != exchange.StateConnected {
		return fmt.Errorf("user stream %s", st.State)
	}
	return nil
}
