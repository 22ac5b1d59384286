package avatar

import (
	"context"
	"time"

	"miko/internal/audio"
	"miko/internal/character"
	"miko/internal/emotion"
	"miko/pkg/log"
)

// Player 音频输出端
// PlayAudio需要阻塞到该段音频播放结束才返回
type Player interface {
	PlayAudio(ctx context.Context, avatarIndex int, pcm []byte, sampleRate int) error
}

// Avatar 一个运行中的头像实例
// 表情状态只会被本头像自己的播放路径（Speak/占位播报）和帧循环修改
type Avatar struct {
	Index     int
	Character *character.Character

	expr   *ExpressionController
	filler *FillerLoop
	player Player
	log    *log.Logger

	fillerPCM        []byte
	fillerSampleRate int
}

func New(index int, ch *character.Character, player Player, logger *log.Logger) *Avatar {
	a := &Avatar{
		Index:     index,
		Character: ch,
		expr:      NewExpressionController(),
		player:    player,
		log:       logger,
	}
	a.filler = NewFillerLoop(a, logger)
	return a
}

// LoadFillerClip 预载占位音频
// 头像加载时调用一次；没有占位音频不算错误，只是该头像不做占位播报
func (a *Avatar) LoadFillerClip() {
	if a.Character.FillerClip == "" {
		return
	}
	pcm, sampleRate, err := audio.LoadWAVFile(a.Character.FillerClip)
	if err != nil {
		a.log.Warnf("failed to load filler clip %s: %v", a.Character.FillerClip, err)
		return
	}
	a.fillerPCM = pcm
	a.fillerSampleRate = sampleRate
	a.log.Infof("filler clip loaded for %s: %v", a.Character.ID, audio.PCMDuration(pcm, sampleRate))
}

func (a *Avatar) HasFillerClip() bool {
	return len(a.fillerPCM) > 0
}

// Speak 播放一段音频并带上表情，阻塞到播放结束
func (a *Avatar) Speak(ctx context.Context, pcm []byte, sampleRate int, emo emotion.Emotion) error {
	a.expr.PlayEmotion(emo)
	a.expr.BeginClip(pcm, sampleRate)
	err := a.player.PlayAudio(ctx, a.Index, pcm, sampleRate)
	a.expr.EndClip()
	return err
}

// SpeakFillerClip 播放一遍占位音频
func (a *Avatar) SpeakFillerClip(ctx context.Context, emo emotion.Emotion) error {
	if !a.HasFillerClip() {
		return nil
	}
	return a.Speak(ctx, a.fillerPCM, a.fillerSampleRate, emo)
}

// ResetEmotion 恢复自然表情
func (a *Avatar) ResetEmotion() {
	a.expr.PlayEmotion(emotion.Neutral)
}

// Emotion 当前实际呈现的表情
func (a *Avatar) Emotion() emotion.Emotion {
	return a.expr.Emotion()
}

// Update 每帧推进表情状态机
func (a *Avatar) Update(delta time.Duration) Frame {
	return a.expr.Update(delta)
}

// Filler 该头像的占位播报循环
func (a *Avatar) Filler() *FillerLoop {
	return a.filler
}
