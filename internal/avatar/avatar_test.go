package avatar

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miko/internal/audio"
	"miko/internal/character"
	"miko/internal/emotion"
	"miko/pkg/log"
)

// loudPCM 生成指定时长的高音量PCM，保证任意窗口都有接近满幅的采样
func loudPCM(d time.Duration) []byte {
	samples := int(d.Seconds() * float64(audio.DefaultSampleRate))
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(30000)))
	}
	return pcm
}

type fakePlayer struct {
	mu      sync.Mutex
	plays   int
	playing bool
	delay   time.Duration
}

func (p *fakePlayer) PlayAudio(ctx context.Context, avatarIndex int, pcm []byte, sampleRate int) error {
	p.mu.Lock()
	p.plays++
	p.playing = true
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(p.delay):
		}
	}

	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

func (p *fakePlayer) isPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func TestAutoBlinkCycle(t *testing.T) {
	b := NewAutoBlink()
	assert.True(t, b.IsOpen())

	// 睁眼5秒后闭眼
	b.Update(5 * time.Second)
	assert.True(t, b.IsOpen())
	b.Update(time.Millisecond)
	assert.False(t, b.IsOpen())

	// 闭眼120毫秒后重新睁眼
	b.Update(120 * time.Millisecond)
	assert.False(t, b.IsOpen())
	b.Update(time.Millisecond)
	assert.True(t, b.IsOpen())
}

func TestAutoBlinkDisabledKeepsEyesOpen(t *testing.T) {
	b := NewAutoBlink()
	wait := b.SetEnable(false)
	assert.Equal(t, time.Duration(0), wait)

	for i := 0; i < 100; i++ {
		b.Update(time.Second)
		assert.True(t, b.IsOpen())
	}
}

func TestPlayEmotionAppliesImmediatelyWhenEyesOpen(t *testing.T) {
	c := NewExpressionController()
	c.PlayEmotion(emotion.Happy)
	assert.Equal(t, emotion.Happy, c.Emotion())

	frame := c.Update(16 * time.Millisecond)
	assert.True(t, frame.EyesOpen)
	assert.Equal(t, emotion.Happy, frame.Emotion)
}

func TestPlayEmotionDeferredUntilEyesOpen(t *testing.T) {
	c := NewExpressionController()

	// 推进到闭眼时刻
	c.Update(5 * time.Second)
	frame := c.Update(time.Millisecond)
	require.False(t, frame.EyesOpen)

	c.PlayEmotion(emotion.Angry)
	assert.Equal(t, emotion.Neutral, c.Emotion())

	// 闭眼期间表情维持自然
	frame = c.Update(60 * time.Millisecond)
	assert.False(t, frame.EyesOpen)
	assert.Equal(t, emotion.Neutral, frame.Emotion)

	// 倒计时结束但尚未睁眼的帧依旧不套用
	frame = c.Update(70 * time.Millisecond)
	assert.False(t, frame.EyesOpen)
	assert.Equal(t, emotion.Neutral, frame.Emotion)

	frame = c.Update(time.Millisecond)
	assert.True(t, frame.EyesOpen)
	assert.Equal(t, emotion.Angry, frame.Emotion)
}

func TestClosedEyeFrameNeverEmotive(t *testing.T) {
	c := NewExpressionController()

	tick := 16 * time.Millisecond
	total := 12 * time.Second
	for elapsed := time.Duration(0); elapsed < total; elapsed += tick {
		// 在各种时刻反复切换表情
		switch elapsed {
		case 4992 * time.Millisecond:
			c.PlayEmotion(emotion.Sad)
		case 5056 * time.Millisecond:
			c.PlayEmotion(emotion.Happy)
		case 8 * time.Second:
			c.PlayEmotion(emotion.Neutral)
		case 10 * time.Second:
			c.PlayEmotion(emotion.Relaxed)
		}

		frame := c.Update(tick)
		if !frame.EyesOpen {
			assert.Equal(t, emotion.Neutral, frame.Emotion,
				"closed-eye frame at %v carries emotion %s", elapsed, frame.Emotion)
		}
	}
}

func TestNeutralRestoresAutoBlink(t *testing.T) {
	c := NewExpressionController()
	c.PlayEmotion(emotion.Happy)

	// 有表情时不眨眼
	for i := 0; i < 10; i++ {
		frame := c.Update(time.Second)
		assert.True(t, frame.EyesOpen)
	}

	c.PlayEmotion(emotion.Neutral)
	blinked := false
	for i := 0; i < 700; i++ {
		frame := c.Update(16 * time.Millisecond)
		assert.Equal(t, emotion.Neutral, frame.Emotion)
		if !frame.EyesOpen {
			blinked = true
		}
	}
	assert.True(t, blinked)
}

func TestLipSyncWeights(t *testing.T) {
	c := NewExpressionController()
	pcm := loudPCM(time.Second)

	c.BeginClip(pcm, audio.DefaultSampleRate)
	neutralFrame := c.Update(10 * time.Millisecond)
	assert.Greater(t, neutralFrame.LipSync, 0.45)
	assert.LessOrEqual(t, neutralFrame.LipSync, 0.5)

	c.PlayEmotion(emotion.Happy)
	emotiveFrame := c.Update(10 * time.Millisecond)
	assert.Greater(t, emotiveFrame.LipSync, 0.2)
	assert.LessOrEqual(t, emotiveFrame.LipSync, 0.25)

	c.EndClip()
	frame := c.Update(10 * time.Millisecond)
	assert.Equal(t, 0.0, frame.LipSync)
}

func TestLipSyncSilenceStaysClosed(t *testing.T) {
	c := NewExpressionController()
	pcm := make([]byte, audio.DefaultSampleRate*2) // 1秒静音

	c.BeginClip(pcm, audio.DefaultSampleRate)
	frame := c.Update(10 * time.Millisecond)
	assert.Equal(t, 0.0, frame.LipSync)
}

func newTestAvatar(t *testing.T, fillerClip bool, player Player) *Avatar {
	t.Helper()

	ch := &character.Character{
		ID:           "alien",
		Name:         "外星人",
		AdaptLayouts: []character.Layout{character.LayoutDual},
	}
	if fillerClip {
		path := filepath.Join(t.TempDir(), "filler.wav")
		wav := audio.EncodeWAV(loudPCM(10*time.Millisecond), audio.DefaultSampleRate)
		require.NoError(t, os.WriteFile(path, wav, 0o644))
		ch.FillerClip = path
	}

	a := New(0, ch, player, log.NewNopLogger())
	a.LoadFillerClip()
	return a
}

func TestFillerLoopWithoutClipIsNoop(t *testing.T) {
	player := &fakePlayer{}
	a := newTestAvatar(t, false, player)

	assert.False(t, a.HasFillerClip())
	a.Filler().Start(context.Background())
	assert.Equal(t, FillerIdle, a.Filler().State())
	assert.Equal(t, 0, player.playCount())

	// 空闲时停止也是no-op
	a.Filler().Stop()
}

func TestFillerLoopStartStop(t *testing.T) {
	player := &fakePlayer{delay: 5 * time.Millisecond}
	a := newTestAvatar(t, true, player)
	require.True(t, a.HasFillerClip())

	a.Filler().Start(context.Background())
	assert.Equal(t, FillerLooping, a.Filler().State())

	// 重复启动不生效
	a.Filler().Start(context.Background())

	assert.Eventually(t, func() bool {
		return player.playCount() >= 2
	}, time.Second, time.Millisecond)

	a.Filler().Stop()
	// Stop返回时当前这一遍必然已经播完
	assert.False(t, player.isPlaying())
	assert.Equal(t, FillerIdle, a.Filler().State())

	count := player.playCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, player.playCount())
}

func TestFillerLoopStopsOnContextCancel(t *testing.T) {
	player := &fakePlayer{delay: 5 * time.Millisecond}
	a := newTestAvatar(t, true, player)

	ctx, cancel := context.WithCancel(context.Background())
	a.Filler().Start(ctx)
	cancel()

	assert.Eventually(t, func() bool {
		return a.Filler().State() == FillerIdle
	}, time.Second, time.Millisecond)
}

func TestSpeakDrivesExpression(t *testing.T) {
	player := &fakePlayer{}
	a := newTestAvatar(t, false, player)

	err := a.Speak(context.Background(), loudPCM(10*time.Millisecond), audio.DefaultSampleRate, emotion.Happy)
	require.NoError(t, err)
	assert.Equal(t, emotion.Happy, a.Emotion())
	assert.Equal(t, 1, player.playCount())

	// 播放结束后口型闭合
	frame := a.Update(10 * time.Millisecond)
	assert.Equal(t, 0.0, frame.LipSync)

	a.ResetEmotion()
	assert.Equal(t, emotion.Neutral, a.Emotion())
}
