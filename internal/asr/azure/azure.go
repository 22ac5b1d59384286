package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"miko/internal/asr"
	"miko/internal/audio"
	"miko/pkg/log"
)

// Azure 语音服务短语音识别REST接口
// https://learn.microsoft.com/azure/ai-services/speech-service/rest-speech-to-text-short

const urlFormat = "https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"

type Azure struct {
	cfg    *asr.Config
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

func (a *Azure) SetConfig(cfg *asr.Config) *asr.Config {
	if cfg.Language == "" {
		cfg.Language = "zh-CN"
	}
	a.cfg = cfg
	return cfg
}

type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
}

func (a *Azure) Transcribe(ctx context.Context, segment *audio.SpeechSegment) (string, error) {
	if segment.Empty() {
		return "", nil
	}
	if a.cfg == nil || a.cfg.APIKey == "" || a.cfg.Region == "" {
		return "", fmt.Errorf("azure asr config incomplete")
	}

	endpoint := fmt.Sprintf(urlFormat, a.cfg.Region) + "?language=" + url.QueryEscape(a.cfg.Language)
	wav := audio.EncodeWAV(segment.PCM, segment.SampleRate)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("failed to build asr request: %v", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.APIKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", segment.SampleRate))
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("asr request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read asr response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asr request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result recognitionResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal asr response: %v", err)
	}

	// 未识别出语音内容不算错误，按空文本处理
	if result.RecognitionStatus != "Success" {
		a.log.Infof("asr recognition status: %s", result.RecognitionStatus)
		return "", nil
	}
	return result.DisplayText, nil
}
