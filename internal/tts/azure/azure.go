package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"miko/internal/emotion"
	"miko/internal/tts"
	"miko/pkg/log"
)

// Azure 语音服务语音合成REST接口
// https://learn.microsoft.com/azure/ai-services/speech-service/rest-text-to-speech
// 通过SSML的mstts:express-as为语音附加语气
// https://learn.microsoft.com/azure/ai-services/speech-service/speech-synthesis-markup-voice

const urlFormat = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"

// 合成裸PCM，方便服务端推算口型包络与播放时长
const outputFormat = "raw-16khz-16bit-mono-pcm"

const defaultVoice = "zh-CN-XiaoxiaoNeural"

// 表情到Azure语气风格的映射，自然语气不附加风格
var emotionToStyle = map[emotion.Emotion]string{
	emotion.Happy:   "cheerful",
	emotion.Angry:   "angry",
	emotion.Sad:     "sad",
	emotion.Relaxed: "chat",
	emotion.Neutral: "",
}

type Azure struct {
	cfg    *tts.Config
	log    *log.Logger
	client *http.Client
}

func NewAzure(logger *log.Logger) *Azure {
	return &Azure{
		log: logger,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (a *Azure) SetConfig(cfg *tts.Config) *tts.Config {
	if cfg.SampleRate != 16000 {
		// 输出格式固定为16k，避免下游口型推算出错
		cfg.SampleRate = 16000
	}
	if cfg.Language == "" {
		cfg.Language = "zh-CN"
	}
	a.cfg = cfg
	return cfg
}

func (a *Azure) Synthesize(ctx context.Context, text string, emo emotion.Emotion, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if a.cfg == nil || a.cfg.APIKey == "" || a.cfg.Region == "" {
		return nil, fmt.Errorf("azure tts config incomplete")
	}
	if voice == "" {
		voice = defaultVoice
	}

	ssml := a.buildSSML(text, emo, voice)
	endpoint := fmt.Sprintf(urlFormat, a.cfg.Region)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to build tts request: %v", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts request failed with status %d: %s", resp.StatusCode, string(body))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tts response: %v", err)
	}
	return pcm, nil
}

func (a *Azure) buildSSML(text string, emo emotion.Emotion, voice string) string {
	style := emotionToStyle[emo]
	expressOpen := "<mstts:express-as>"
	if style != "" {
		expressOpen = fmt.Sprintf("<mstts:express-as style=%q>", style)
	}

	var builder strings.Builder
	builder.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="`)
	builder.WriteString(a.cfg.Language)
	builder.WriteString(`"><voice name="`)
	builder.WriteString(voice)
	builder.WriteString(`">`)
	builder.WriteString(expressOpen)
	builder.WriteString(escapeText(text))
	builder.WriteString("</mstts:express-as></voice></speak>")
	return builder.String()
}

// escapeText 转义SSML文本中的XML保留字符
func escapeText(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(text)
}
