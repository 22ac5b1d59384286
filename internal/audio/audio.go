package audio

import (
	"errors"
	"math"
	"time"
)

const DefaultSampleRate = 16000

// SpeechSegment 一段完整的语音数据
// 固定为单声道16bit小端PCM，由客户端VAD在一次说话结束后整体上传，采集后不可变
type SpeechSegment struct {
	PCM        []byte
	SampleRate int
}

func NewSpeechSegment(pcm []byte, sampleRate int) *SpeechSegment {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &SpeechSegment{PCM: pcm, SampleRate: sampleRate}
}

func (s *SpeechSegment) Empty() bool {
	return s == nil || len(s.PCM) == 0
}

// Duration 根据采样数推算的音频时长
func (s *SpeechSegment) Duration() time.Duration {
	if s.Empty() {
		return 0
	}
	samples := len(s.PCM) / 2
	return time.Duration(float64(samples) / float64(s.SampleRate) * float64(time.Second))
}

// PCMDuration 推算一段裸PCM的播放时长
func PCMDuration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	samples := len(pcm) / 2
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

var ErrShortPCM = errors.New("pcm data too short")

// VolumeAt 估算PCM在offset时刻附近的口型音量，取值[0,1]
// 在窗口内取最大振幅后做sigmoid压缩，过小的音量归零，避免嘴部抖动
func VolumeAt(pcm []byte, sampleRate int, offset time.Duration, window time.Duration) float64 {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if len(pcm) < 2 {
		return 0
	}

	start := int(offset.Seconds() * float64(sampleRate))
	count := int(window.Seconds() * float64(sampleRate))
	if count <= 0 {
		count = 1
	}
	totalSamples := len(pcm) / 2
	if start < 0 {
		start = 0
	}
	if start >= totalSamples {
		return 0
	}
	end := start + count
	if end > totalSamples {
		end = totalSamples
	}

	var peak float64
	for i := start; i < end; i++ {
		sample := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		v := math.Abs(float64(sample) / 32768.0)
		if v > peak {
			peak = v
		}
	}

	volume := 1 / (1 + math.Exp(-45*peak+5))
	if volume < 0.1 {
		volume = 0
	}
	return volume
}
