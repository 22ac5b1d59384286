package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"miko/internal/audio"
)

// playedAckGrace 播放回执兜底超时在音频时长之外的余量
const playedAckGrace = 2 * time.Second

// cameraAckTimeout 镜头切换回执的兜底超时
const cameraAckTimeout = 2 * time.Second

func playedAckKey(clipID string) string {
	return "played:" + clipID
}

func cameraAckKey(avatarIndex int) string {
	return fmt.Sprintf("camera:%d", avatarIndex)
}

// ackRegistry 挂起的客户端回执等待
type ackRegistry struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func newAckRegistry() *ackRegistry {
	return &ackRegistry{waiters: make(map[string]chan struct{})}
}

// register 注册一个回执等待
// @return <-chan struct{}: 回执到达时关闭
// @return func(): 注销函数，等待结束后必须调用
func (r *ackRegistry) register(key string) (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan struct{})
	r.waiters[key] = ch
	return ch, func() {
		r.mu.Lock()
		delete(r.waiters, key)
		r.mu.Unlock()
	}
}

// fire 回执到达，没有等待者的回执直接忽略
func (r *ackRegistry) fire(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.waiters[key]; ok {
		close(ch)
		delete(r.waiters, key)
	}
}

// wsPlayer 通过websocket把合成音频交给客户端播放
// 阻塞到客户端回执played；回执丢失时按音频时长加余量兜底返回
type wsPlayer struct {
	h *Handler
}

func (p *wsPlayer) PlayAudio(ctx context.Context, avatarIndex int, pcm []byte, sampleRate int) error {
	clipID := uuid.New().String()
	duration := audio.PCMDuration(pcm, sampleRate)

	ackCh, cancel := p.h.acks.register(playedAckKey(clipID))
	defer cancel()

	emo := p.h.orch.Avatars()[avatarIndex].Emotion()
	if err := p.h.sendSpeakMessage(avatarIndex, clipID, string(emo),
		base64.StdEncoding.EncodeToString(pcm), sampleRate, duration.Milliseconds()); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.h.stopChan:
		return ErrConnectionClosed
	case <-ackCh:
		return nil
	case <-time.After(duration + playedAckGrace):
		p.h.log.Warnf("played ack timed out for clip %s, assume finished", clipID)
		return nil
	}
}

// wsCamera 通过websocket驱动客户端镜头切换
type wsCamera struct {
	h *Handler
}

func (c *wsCamera) Refocus(ctx context.Context, avatarIndex int) error {
	ackCh, cancel := c.h.acks.register(cameraAckKey(avatarIndex))
	defer cancel()

	if err := c.h.sendCameraMessage(avatarIndex); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.h.stopChan:
		return ErrConnectionClosed
	case <-ackCh:
		return nil
	case <-time.After(cameraAckTimeout):
		c.h.log.Warnf("camera ack timed out for avatar %d, assume settled", avatarIndex)
		return nil
	}
}
