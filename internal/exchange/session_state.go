package exchange

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState 用户数据流连接状态。
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// SessionSnapshot 是会话状态的只读拷贝。
type SessionSnapshot struct {
	State        ConnState
	ListenKey    string
	LastActivity time.Time
	Generation   uint64
}

// sessionState 把 key、连接和活动时间放在同一把锁下：重连时整体替换，断开时整体清空，
// 读到的 key 和连接总是属于同一代。
type sessionState struct {
	mu           sync.Mutex
	state        ConnState
	key          string
	conn         *websocket.Conn
	lastActivity time.Time
	gen          uint64
}

func (s *sessionState) connecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		s.state = StateConnecting
	}
}

// install 安装新一代连接，返回代号。
func (s *sessionState) install(key string, conn *websocket.Conn, now time.Time) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = StateConnected
	s.key = key
	s.conn = conn
	s.lastActivity = now
	return s.gen
}

// abort 连接失败时从 CONNECTING 回到 DISCONNECTED。
func (s *sessionState) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnecting {
		s.state = StateDisconnected
	}
}

// clear 清空 gen 这一代的状态并交出连接；gen 已过期则什么都不做。
// gen 为 0 表示无条件清空（Stop）。
func (s *sessionState) clear(gen uint64) (*websocket.Conn, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != 0 && gen != s.gen {
		return nil, "", false
	}
	conn, key := s.conn, s.key
	had := conn != nil
	s.conn = nil
	s.key = ""
	s.state = StateDisconnected
	return conn, key, had
}

// touch 记录 gen 这一代的入站活动。
func (s *sessionState) touch(gen uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && s.conn != nil {
		s.lastActivity = now
	}
}

// current 返回当前连接及其代号，供 keepalive 使用。
func (s *sessionState) current() (*websocket.Conn, uint64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.gen, s.lastActivity
}

func (s *sessionState) snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSnapshot{
		State:        s.state,
		ListenKey:    s.key,
		LastActivity: s.lastActivity,
		Generation:   s.gen,
	}
}
