package avatar

import (
	"context"
	"sync"

	"miko/internal/emotion"
	"miko/pkg/log"
)

// FillerState 占位播报状态
type FillerState int

const (
	// FillerIdle 空闲
	FillerIdle FillerState = iota
	// FillerLooping 循环播放占位音频中
	FillerLooping
)

// FillerLoop 占位播报循环
// 双头像布局下等待翻译角色的回复时，用预载的占位音频让外星角色保持开口说话
// 两个状态之间只有Start/Stop两个迁移：
//   - Start: idle -> looping，已在looping时为no-op
//   - Stop: looping -> idle，等当前这一遍播完才停，不会中途掐断；已在idle时为no-op
type FillerLoop struct {
	mu     sync.Mutex
	state  FillerState
	stopCh chan struct{}
	doneCh chan struct{}

	avatar *Avatar
	log    *log.Logger
}

func NewFillerLoop(avatar *Avatar, logger *log.Logger) *FillerLoop {
	return &FillerLoop{
		avatar: avatar,
		log:    logger,
	}
}

// State 当前状态
func (l *FillerLoop) State() FillerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start 开始循环播放占位音频
// 未预载占位音频的头像不启用占位播报，直接返回
func (l *FillerLoop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.avatar.HasFillerClip() {
		return
	}
	if l.state == FillerLooping {
		return
	}

	l.state = FillerLooping
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.run(ctx, l.stopCh, l.doneCh)
}

// Stop 停止循环，阻塞到当前这一遍播放完成
func (l *FillerLoop) Stop() {
	l.mu.Lock()
	if l.state != FillerLooping {
		l.mu.Unlock()
		return
	}
	select {
	case <-l.stopCh:
		// 已有其它调用方请求停止
	default:
		close(l.stopCh)
	}
	done := l.doneCh
	l.mu.Unlock()

	<-done
}

func (l *FillerLoop) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer func() {
		l.mu.Lock()
		l.state = FillerIdle
		l.mu.Unlock()
		close(doneCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if err := l.avatar.SpeakFillerClip(ctx, emotion.Neutral); err != nil {
			l.log.Errorf("failed to play filler clip: %v", err)
			return
		}
	}
}
