package tts

import (
	"context"

	"miko/internal/emotion"
)

// Config 需要请求tts的相关配置
type Config struct {
	APIKey string
	Region string
	// 可选参数
	SampleRate int    // 合成音频的采样率
	Language   string // 合成的语言
}

// Provider 语音合成提供者
// 整段合成：一次合成一个文本片段并返回完整音频，不做流式合成
type Provider interface {
	// SetConfig 设置 Provider 的配置
	// @param cfg: 客户端需求的配置
	// @return *Config: 实际请求的配置
	SetConfig(cfg *Config) *Config
	// Synthesize 合成一个文本片段
	// @param text: 待合成的文本片段
	// @param emo: 表情提示，服务不支持对应语气时按自然语气合成
	// @param voice: 发音人
	// @return []byte: 单声道16bit小端PCM，合成失败或无内容时为空
	Synthesize(ctx context.Context, text string, emo emotion.Emotion, voice string) ([]byte, error)
}
