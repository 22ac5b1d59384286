package handler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"miko/internal/character"
	"miko/internal/config"
	"miko/internal/dialogue"
	"miko/internal/metrics"
	"miko/internal/model"
	"miko/internal/turn"
	"miko/pkg/log"
	"miko/pkg/util"
)

// frameInterval 表情帧下发节拍
const frameInterval = 50 * time.Millisecond

// Handler 单个websocket会话
// 读循环接收客户端消息，回合在独立协程上运行，表情帧按固定节拍下发
type Handler struct {
	cfg *config.Config
	log *log.Logger

	conn Connection
	once sync.Once // 用于确保只执行一次关闭操作

	sessionID string
	engine    *dialogue.Engine
	metrics   *metrics.Metrics

	orch       *turn.Orchestrator
	layout     character.Layout
	sampleRate int

	captureEnabled int32 // 语音采集开关，0：暂停，1：采集中

	acks     *ackRegistry
	stopChan chan struct{}
}

func NewHandler(cfg *config.Config, logger *log.Logger, conn Connection, engine *dialogue.Engine, m *metrics.Metrics) *Handler {
	return &Handler{
		cfg:            cfg,
		log:            logger,
		conn:           conn,
		sessionID:      uuid.New().String(),
		engine:         engine,
		metrics:        m,
		captureEnabled: 1,
		acks:           newAckRegistry(),
		stopChan:       make(chan struct{}),
	}
}

func (h *Handler) Handle(ctx context.Context) {
	defer h.close()

	h.metrics.SessionOpened()
	defer h.metrics.SessionClosed()

	// 接收并处理hello消息
	if err := h.handleHelloMessage(ctx); err != nil {
		h.log.Errorf("failed to handle hello message: %v", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.listenClientMessages(gctx)
	})
	g.Go(func() error {
		return h.pushExpressionFrames(gctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, ErrConnectionClosed) {
		h.log.Errorf("session %s ended: %v", h.sessionID, err)
	}
}

func (h *Handler) listenClientMessages(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.stopChan:
			return nil
		default:
			messageType, message, err := h.conn.ReadMessage()
			if err != nil {
				return err
			}
			if err = h.handleMessage(ctx, messageType, message); err != nil {
				h.log.Errorf("failed to handle message: %v", err)
			}
		}
	}
}

// pushExpressionFrames 按固定节拍推进所有头像的表情状态机并下发帧
func (h *Handler) pushExpressionFrames(ctx context.Context) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.stopChan:
			return nil
		case <-ticker.C:
			avatars := h.orch.Avatars()
			frames := make([]model.AvatarFrame, 0, len(avatars))
			for _, a := range avatars {
				f := a.Update(frameInterval)
				frames = append(frames, model.AvatarFrame{
					Index:    a.Index,
					EyesOpen: f.EyesOpen,
					Emotion:  string(f.Emotion),
					LipSync:  f.LipSync,
				})
			}
			if err := h.sendFrameMessage(frames); err != nil {
				return err
			}
		}
	}
}

// isExit 判断用户文本是否命中退出指令
func (h *Handler) isExit(text string) bool {
	if len(h.cfg.CMDExit) == 0 {
		return false
	}
	// 移除标点符号
	text = util.RemoveAllPunctuation(text)
	for _, cmd := range h.cfg.CMDExit {
		if text == cmd {
			return true
		}
	}
	return false
}

func (h *Handler) captureOn() bool {
	return atomic.LoadInt32(&h.captureEnabled) == 1
}

func (h *Handler) close() {
	h.once.Do(func() {
		_ = h.conn.Close()
		close(h.stopChan)
	})
}
