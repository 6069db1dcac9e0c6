// Package banner 管理可关闭、自动过期的错误横幅.
package banner

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yeisme/propvault/pkg/client/errs"
)

// Banner 当前展示的错误信息. 新消息会重置计时，旧计时器不会清除新消息.
type Banner struct {
	clock   clockwork.Clock
	timeout time.Duration

	mu       sync.Mutex
	msg      string
	gen      uint64
	timer    clockwork.Timer
	onChange func(msg string)
}

// New 创建 Banner，timeout 后自动清除.
func New(clock clockwork.Clock, timeout time.Duration) *Banner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Banner{clock: clock, timeout: timeout}
}

// OnChange 注册消息变化回调，msg 为空表示横幅已清除.
func (b *Banner) OnChange(fn func(msg string)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Show 展示 err 的用户可读信息，nil 被忽略.
func (b *Banner) Show(err error) {
	if err == nil {
		return
	}

	b.ShowMessage(errs.UserMessage(err))
}

// ShowMessage 展示一条消息并开始计时.
func (b *Banner) ShowMessage(msg string) {
	b.mu.Lock()
	b.stopLocked()
	b.gen++
	gen := b.gen
	b.msg = msg
	b.timer = b.clock.AfterFunc(b.timeout, func() { b.expire(gen) })
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

// Current 返回当前消息，空串表示无横幅.
func (b *Banner) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.msg
}

// Dismiss 立即清除横幅.
func (b *Banner) Dismiss() {
	b.mu.Lock()
	b.stopLocked()
	b.gen++
	cleared := b.msg != ""
	b.msg = ""
	fn := b.onChange
	b.mu.Unlock()

	if cleared && fn != nil {
		fn("")
	}
}

// Close 停止计时器.
func (b *Banner) Close() {
	b.mu.Lock()
	b.stopLocked()
	b.mu.Unlock()
}

func (b *Banner) expire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()

		return
	}

	b.msg = ""
	b.timer = nil
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn("")
	}
}

func (b *Banner) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
