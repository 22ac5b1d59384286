package turn

import (
	"context"
	"fmt"
	"strings"

	"miko/internal/avatar"
	"miko/internal/emotion"
	"miko/pkg/log"
)

// SynthesizedSegment 携带合成音频的回复片段
type SynthesizedSegment struct {
	Emotion    emotion.Emotion
	Text       string
	PCM        []byte
	SampleRate int
}

// Valid 文本与音频都非空的片段才允许播放
func (s *SynthesizedSegment) Valid() bool {
	return s != nil && strings.TrimSpace(s.Text) != "" && len(s.PCM) > 0
}

// Sequencer 播放编排器
// 在一个头像上逐段播放：设置表情、播放音频、等播放结束再进入下一段，
// 同一头像上的片段永远不会重叠
type Sequencer struct {
	log *log.Logger
}

func NewSequencer(logger *log.Logger) *Sequencer {
	return &Sequencer{log: logger}
}

// Play 按顺序播放全部片段，无论正常播完还是中途出错，表情都恢复自然
func (s *Sequencer) Play(ctx context.Context, a *avatar.Avatar, segments []*SynthesizedSegment) error {
	defer a.ResetEmotion()

	for i, seg := range segments {
		if !seg.Valid() {
			continue
		}
		if err := a.Speak(ctx, seg.PCM, seg.SampleRate, seg.Emotion); err != nil {
			return fmt.Errorf("failed to play segment %d: %w", i, err)
		}
	}
	return nil
}
