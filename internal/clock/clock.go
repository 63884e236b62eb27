package clock

import (
	"sync"
	"time"
)

// Clock 抽象当前时间，生产环境使用真实时钟，测试中使用可推进的固定时钟。
type Clock interface {
	Now() time.Time
}

// Real 返回系统时间
type Real struct{}

// Now 实现 Clock
func (Real) Now() time.Time {
	return time.Now()
}

// Fixed 是一个可手动推进的时钟，并发安全。
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed 构造停在 t 的时钟
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// Now 实现 Clock
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set 将时钟拨到 t
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance 将时钟向前推进 d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
