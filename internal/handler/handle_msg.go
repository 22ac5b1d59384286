package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"miko/internal/asr"
	azureasr "miko/internal/asr/azure"
	"miko/internal/audio"
	"miko/internal/avatar"
	"miko/internal/character"
	"miko/internal/model"
	"miko/internal/tts"
	azuretts "miko/internal/tts/azure"
	"miko/internal/turn"
	errcode "miko/pkg/err-code"
)

func (h *Handler) handleMessage(ctx context.Context, messageType int, message []byte) error {
	switch messageType {
	case websocket.TextMessage:
		return h.handleClientTextMessage(ctx, message)
	case websocket.BinaryMessage:
		h.handleSpeechSegment(ctx, message)
		return nil
	default:
		return fmt.Errorf("unsupported message type: %d", messageType)
	}
}

// handleSpeechSegment 处理客户端上传的一段完整语音
// 采集暂停或回合进行中的语音直接丢弃，不做缓冲
func (h *Handler) handleSpeechSegment(ctx context.Context, data []byte) {
	if !h.captureOn() {
		return
	}
	if h.orch.Gate().IsClosed() {
		h.log.Debug("speech segment dropped: turn in flight")
		return
	}

	seg := audio.NewSpeechSegment(data, h.sampleRate)
	// 回合在独立协程上运行，读循环继续接收播放与镜头回执
	go h.runTurn(ctx, func(ctx context.Context) turn.Result {
		return h.orch.HandleSpeech(ctx, seg)
	})
}

func (h *Handler) handleClientTextMessage(ctx context.Context, message []byte) error {
	var data model.ClientMessage
	if err := json.Unmarshal(message, &data); err != nil {
		_ = h.sendErrorMessage(errcode.ErrInvalidDataType.Code(), errcode.ErrInvalidDataType.Msg())
		return fmt.Errorf("failed to unmarshal text message: %v", err)
	}

	switch data.Type {
	case "chat":
		text := data.ChatText
		go h.runTurn(ctx, func(ctx context.Context) turn.Result {
			return h.orch.HandleChat(ctx, text)
		})
		return nil
	case "played":
		h.acks.fire(playedAckKey(data.ClipID))
		return nil
	case "camera_done":
		h.acks.fire(cameraAckKey(data.AvatarIndex))
		return nil
	case "pause":
		atomic.StoreInt32(&h.captureEnabled, 0)
		h.log.Infof("session %s capture paused", h.sessionID)
		return nil
	case "resume":
		atomic.StoreInt32(&h.captureEnabled, 1)
		h.log.Infof("session %s capture resumed", h.sessionID)
		return nil
	default:
		_ = h.sendErrorMessage(errcode.ErrInvalidDataType.Code(), errcode.ErrInvalidDataType.Msg())
		return fmt.Errorf("unsupported message type: %s", data.Type)
	}
}

// runTurn 跑完一轮对话，识别出退出指令时在本轮结束后关闭会话
func (h *Handler) runTurn(ctx context.Context, run func(context.Context) turn.Result) {
	res := run(ctx)
	if res.Outcome == turn.OutcomeDropped {
		return
	}
	h.log.Infof("turn finished: outcome=%s utterance=%q", res.Outcome, res.Utterance)

	if res.Utterance != "" && h.isExit(res.Utterance) {
		h.log.Infof("session %s exit command received", h.sessionID)
		_ = h.sendGoodbyeMessage()
		h.close()
	}
}

// handleHelloMessage 处理首条hello消息，按布局完成会话装配
func (h *Handler) handleHelloMessage(ctx context.Context) error {
	messageType, message, err := h.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read hello message: %v", err)
	}
	if messageType != websocket.TextMessage {
		_ = h.sendErrorMessage(errcode.ErrInvalidDataType.Code(), errcode.ErrInvalidDataType.Msg())
		return fmt.Errorf("unsupported message type: %d", messageType)
	}

	var data model.ClientMessage
	if err = json.Unmarshal(message, &data); err != nil {
		_ = h.sendErrorMessage(errcode.ErrInvalidDataType.Code(), errcode.ErrInvalidDataType.Msg())
		return fmt.Errorf("failed to unmarshal hello message: %v", err)
	}
	if data.Type != "hello" {
		_ = h.sendErrorMessage(errcode.ErrInvalidDataType.Code(), errcode.ErrInvalidDataType.Msg())
		return fmt.Errorf("expect hello message, got: %s", data.Type)
	}

	layout := character.Layout(data.Layout)
	if data.Layout == "" {
		layout = character.Layout(h.cfg.DefaultLayout)
	}
	if !layout.IsValid() {
		_ = h.sendErrorMessage(errcode.ErrUnsupportedLayout.Code(), errcode.ErrUnsupportedLayout.Msg())
		return fmt.Errorf("unsupported layout: %s", data.Layout)
	}
	h.layout = layout

	h.sampleRate = data.SampleRate
	if h.sampleRate <= 0 {
		h.sampleRate = audio.DefaultSampleRate
	}

	if err = h.assemble(layout); err != nil {
		_ = h.sendErrorMessage(errcode.ErrInternal.Code(), errcode.ErrInternal.Msg())
		return fmt.Errorf("failed to assemble session: %v", err)
	}

	return h.sendHelloMessage()
}

// assemble 装配本会话的头像、外部服务与回合编排器
func (h *Handler) assemble(layout character.Layout) error {
	registry, err := character.NewRegistry(h.cfg.Characters)
	if err != nil {
		return err
	}
	layoutCfg, ok := h.cfg.Layouts[string(layout)]
	if !ok {
		return fmt.Errorf("layout %s not configured", layout)
	}
	cast, err := registry.Cast(layout, layoutCfg.Characters...)
	if err != nil {
		return err
	}

	player := &wsPlayer{h: h}
	avatars := make([]*avatar.Avatar, 0, len(cast))
	for i, ch := range cast {
		a := avatar.New(i, ch, player, h.log)
		a.LoadFillerClip()
		avatars = append(avatars, a)
	}

	asrProvider := azureasr.NewAzure(h.log)
	asrProvider.SetConfig(&asr.Config{
		APIKey:   h.cfg.Speech.APIKey,
		Region:   h.cfg.Speech.Region,
		Language: h.cfg.Speech.Language,
	})
	ttsProvider := azuretts.NewAzure(h.log)
	ttsProvider.SetConfig(&tts.Config{
		APIKey:   h.cfg.Speech.APIKey,
		Region:   h.cfg.Speech.Region,
		Language: h.cfg.Speech.Language,
	})

	h.orch, err = turn.NewOrchestrator(&turn.Options{
		Layout:   layout,
		Avatars:  avatars,
		ASR:      asrProvider,
		Dialogue: h.engine,
		TTS:      ttsProvider,
		Camera:   &wsCamera{h: h},
		Credentials: &turn.Credentials{
			SpeechKey:    h.cfg.Speech.APIKey,
			SpeechRegion: h.cfg.Speech.Region,
			LLMAPIKey:    h.cfg.LLM.APIKey,
		},
		Metrics: h.metrics,
		Logger:  h.log,
		OnTranscript: func(text string) {
			_ = h.sendAsrMessage(text)
		},
		OnReply: func(text string) {
			_ = h.sendChatMessage(text)
		},
	})
	return err
}
