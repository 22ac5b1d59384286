package avatar

import (
	"sync"
	"time"

	"miko/internal/audio"
	"miko/internal/emotion"
)

const (
	// 口型音量的采样窗口
	lipSyncWindow = 50 * time.Millisecond
	// 自然表情下的口型权重系数
	lipSyncWeightNeutral = 0.5
	// 有表情时口型权重更小，避免嘴型和表情互相打架
	lipSyncWeightEmotive = 0.25
)

// Frame 每帧对外输出的表情快照
type Frame struct {
	EyesOpen bool            `json:"eyes_open"`
	Emotion  emotion.Emotion `json:"emotion"`
	LipSync  float64         `json:"lip_sync"`
}

// pendingEmotion 待套用的表情：等眼睛睁开后再套用
// 用显式的「剩余时间+待执行动作」代替定时器回调，保证帧序确定、便于测试
type pendingEmotion struct {
	emotion   emotion.Emotion
	remaining time.Duration
}

// ExpressionController 单个头像的表情状态机
// 状态仅由所属头像的播放路径和帧循环修改，不会被两条路径并发驱动
type ExpressionController struct {
	mu sync.Mutex

	autoBlink *AutoBlink
	// current 最近一次请求的表情
	current emotion.Emotion
	// applied 实际呈现的表情，闭眼期间的表情切换会延后套用
	applied emotion.Emotion
	pending *pendingEmotion

	// 正在播放的音频，用于逐帧推算口型音量
	clipPCM        []byte
	clipSampleRate int
	clipElapsed    time.Duration
}

func NewExpressionController() *ExpressionController {
	return &ExpressionController{
		autoBlink: NewAutoBlink(),
		current:   emotion.Neutral,
		applied:   emotion.Neutral,
	}
}

// PlayEmotion 切换表情
// 回到自然表情会立刻恢复自动眨眼；切到其它表情会先停用眨眼，
// 如果此刻恰好闭眼，则等睁眼后再套用，表情永远不会出现在闭眼帧上
func (c *ExpressionController) PlayEmotion(emo emotion.Emotion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if emo == emotion.Neutral {
		c.autoBlink.SetEnable(true)
		c.current = emotion.Neutral
		c.applied = emotion.Neutral
		c.pending = nil
		return
	}

	wait := c.autoBlink.SetEnable(false)
	c.current = emo
	if wait > 0 {
		c.pending = &pendingEmotion{emotion: emo, remaining: wait}
		return
	}
	c.applied = emo
	c.pending = nil
}

// BeginClip 标记开始播放一段音频，之后每帧根据播放进度推算口型
func (c *ExpressionController) BeginClip(pcm []byte, sampleRate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clipPCM = pcm
	c.clipSampleRate = sampleRate
	c.clipElapsed = 0
}

// EndClip 播放结束，闭上嘴
func (c *ExpressionController) EndClip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clipPCM = nil
	c.clipSampleRate = 0
	c.clipElapsed = 0
}

// Update 每帧推进状态机，返回当前帧的表情快照
func (c *ExpressionController) Update(delta time.Duration) Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.autoBlink.Update(delta)

	// 帧间隔和眨眼周期未必对齐，倒计时结束后还要等到真正睁眼的那一帧才套用
	if c.pending != nil {
		c.pending.remaining -= delta
		if c.pending.remaining <= 0 && c.autoBlink.IsOpen() {
			c.applied = c.pending.emotion
			c.pending = nil
		}
	}

	var lipSync float64
	if c.clipPCM != nil {
		c.clipElapsed += delta
		volume := audio.VolumeAt(c.clipPCM, c.clipSampleRate, c.clipElapsed, lipSyncWindow)
		if c.current == emotion.Neutral {
			lipSync = volume * lipSyncWeightNeutral
		} else {
			lipSync = volume * lipSyncWeightEmotive
		}
	}

	return Frame{
		EyesOpen: c.autoBlink.IsOpen(),
		Emotion:  c.applied,
		LipSync:  lipSync,
	}
}

// Emotion 当前实际呈现的表情
func (c *ExpressionController) Emotion() emotion.Emotion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}
