// Package session 提供显式的客户端会话对象：初始化时读取持久化的令牌与签发时间，
// 过期时自动清除. 会话通过参数传递给需要它的组件，不存在全局实例.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"

	"github.com/yeisme/propvault/pkg/log"
)

// state 持久化到会话文件的内容.
type state struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Session 单个客户端会话.
type Session struct {
	path  string
	ttl   time.Duration
	clock clockwork.Clock

	mu       sync.Mutex
	st       state
	timer    clockwork.Timer
	onExpire func()
}

// Open 读取会话文件. 文件不存在时得到空会话；已过期的会话会被立即清除.
func Open(path string, ttl time.Duration, clock clockwork.Clock) (*Session, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Session{path: path, ttl: ttl, clock: clock}

	data, err := os.ReadFile(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read session: %w", err)
	}

	if err := sonic.Unmarshal(data, &s.st); err != nil {
		l := log.Component("session")
		l.Warn().Err(err).Str("path", path).Msg("discarding unreadable session file")

		return s, s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Token == "" || !clock.Now().Before(s.expiresAtLocked()) {
		s.st = state{}

		return s, removeFile(path)
	}

	s.scheduleLocked()

	return s, nil
}

// Set 保存新令牌，签发时间取当前时间.
func (s *Session) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st = state{Token: token, IssuedAt: s.clock.Now()}

	if err := s.persistLocked(); err != nil {
		return err
	}

	s.scheduleLocked()

	return nil
}

// Token 返回当前令牌，未登录或已过期时为空，实现 gateway.TokenSource.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.st.Token
}

// Active 报告会话是否有效.
func (s *Session) Active() bool {
	return s.Token() != ""
}

// ExpiresAt 返回过期时间，无会话时为零值.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Token == "" {
		return time.Time{}
	}

	return s.expiresAtLocked()
}

// OnExpire 注册过期回调.
func (s *Session) OnExpire(fn func()) {
	s.mu.Lock()
	s.onExpire = fn
	s.mu.Unlock()
}

// Clear 清除会话并删除会话文件.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.st = state{}

	return removeFile(s.path)
}

// Close 停止过期计时器，不修改持久化内容.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}

func (s *Session) expiresAtLocked() time.Time {
	return s.st.IssuedAt.Add(s.ttl)
}

func (s *Session) scheduleLocked() {
	s.stopLocked()

	issued := s.st.IssuedAt
	s.timer = s.clock.AfterFunc(s.expiresAtLocked().Sub(s.clock.Now()), func() { s.expire(issued) })
}

func (s *Session) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// expire 只清除与计时器对应的那次登录.
func (s *Session) expire(issued time.Time) {
	s.mu.Lock()
	if s.st.Token == "" || !s.st.IssuedAt.Equal(issued) {
		s.mu.Unlock()

		return
	}

	s.st = state{}
	s.timer = nil
	fn := s.onExpire
	err := removeFile(s.path)
	s.mu.Unlock()

	l := log.Component("session")
	if err != nil {
		l.Warn().Err(err).Msg("remove expired session file")
	}

	l.Info().Msg("session expired")

	if fn != nil {
		fn()
	}
}

func (s *Session) persistLocked() error {
	data, err := sonic.Marshal(s.st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}

	return nil
}
