package avatar

import "time"

const (
	// blinkCloseDuration 闭眼时长
	blinkCloseDuration = 120 * time.Millisecond
	// blinkOpenDuration 两次眨眼之间睁眼时长
	blinkOpenDuration = 5 * time.Second
)

// AutoBlink 自动眨眼控制
// 闭眼时直接套用表情会很不自然，所以停用眨眼时返回距离下次睁眼的剩余时间，
// 调用方等待该时间后再套用表情
type AutoBlink struct {
	remaining time.Duration
	isOpen    bool
	enabled   bool
}

func NewAutoBlink() *AutoBlink {
	return &AutoBlink{
		remaining: blinkOpenDuration,
		isOpen:    true, // 默认睁眼
		enabled:   true,
	}
}

// SetEnable 开启/关闭自动眨眼
// @return time.Duration: 距离下次睁眼的剩余时间，睁眼状态下为0
func (b *AutoBlink) SetEnable(enabled bool) time.Duration {
	b.enabled = enabled
	if !b.isOpen {
		return b.remaining
	}
	return 0
}

// Update 每帧推进眨眼计时
func (b *AutoBlink) Update(delta time.Duration) {
	if b.remaining > 0 {
		b.remaining -= delta
		return
	}

	if b.isOpen && b.enabled {
		b.close()
		return
	}
	b.open()
}

func (b *AutoBlink) IsOpen() bool {
	return b.isOpen
}

func (b *AutoBlink) close() {
	b.isOpen = false
	b.remaining = blinkCloseDuration
}

func (b *AutoBlink) open() {
	b.isOpen = true
	b.remaining = blinkOpenDuration
}
