package asr

import (
	"context"

	"miko/internal/audio"
)

// Config 语音识别相关配置
type Config struct {
	APIKey string
	Region string
	// 以下为可选参数
	Language string // 识别语种，如 "zh-CN"
}

// Provider 语音识别提供者
// 整段识别：一次上传一段完整语音，返回完整文本，不做流式增量识别
type Provider interface {
	// SetConfig 设置 Provider 的配置
	// @param cfg: 客户端需求的配置
	// @return *Config: 实际请求的配置
	SetConfig(cfg *Config) *Config
	// Transcribe 识别一段完整语音
	// @param segment: 一次说话结束后采集的完整语音段
	// @return string: 识别文本，识别不到内容时为空字符串
	Transcribe(ctx context.Context, segment *audio.SpeechSegment) (string, error)
}
