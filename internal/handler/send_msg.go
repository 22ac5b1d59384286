package handler

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"miko/internal/model"
)

// sendJSON 序列化并下发一条文本消息
// 连接已关闭时触发一次会话收尾并返回ErrConnectionClosed
func (h *Handler) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %v", err)
	}
	if err = h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if h.conn.IsClosed() {
			h.close()
			return ErrConnectionClosed
		}
		return fmt.Errorf("failed to send message: %v", err)
	}
	return nil
}

func (h *Handler) base(msgType string) model.BaseResponse {
	return model.BaseResponse{
		Type:      msgType,
		SessionID: h.sessionID,
	}
}

func (h *Handler) sendErrorMessage(code int, msg string) error {
	errorMsg := h.base("error")
	errorMsg.ErrorCode = code
	errorMsg.ErrorMsg = msg
	return h.sendJSON(errorMsg)
}

func (h *Handler) sendHelloMessage() error {
	avatars := h.orch.Avatars()
	infos := make([]model.AvatarInfo, 0, len(avatars))
	for _, a := range avatars {
		infos = append(infos, model.AvatarInfo{
			Index:       a.Index,
			CharacterID: a.Character.ID,
			Name:        a.Character.Name,
			Nickname:    a.Character.Nickname,
		})
	}
	return h.sendJSON(model.HelloResponse{
		BaseResponse: h.base("hello"),
		Layout:       string(h.layout),
		SampleRate:   h.sampleRate,
		Avatars:      infos,
	})
}

func (h *Handler) sendAsrMessage(result string) error {
	return h.sendJSON(model.AsrResponse{
		BaseResponse: h.base("asr"),
		Result:       result,
	})
}

func (h *Handler) sendChatMessage(text string) error {
	return h.sendJSON(model.ChatResponse{
		BaseResponse: h.base("chat"),
		Text:         text,
	})
}

func (h *Handler) sendSpeakMessage(avatarIndex int, clipID, emotion, audio string, sampleRate int, durationMs int64) error {
	return h.sendJSON(model.SpeakResponse{
		BaseResponse: h.base("speak"),
		AvatarIndex:  avatarIndex,
		ClipID:       clipID,
		Emotion:      emotion,
		Audio:        audio,
		SampleRate:   sampleRate,
		DurationMs:   durationMs,
	})
}

func (h *Handler) sendCameraMessage(avatarIndex int) error {
	return h.sendJSON(model.CameraResponse{
		BaseResponse: h.base("camera"),
		AvatarIndex:  avatarIndex,
	})
}

func (h *Handler) sendFrameMessage(frames []model.AvatarFrame) error {
	return h.sendJSON(model.FrameResponse{
		BaseResponse: h.base("frame"),
		Avatars:      frames,
	})
}

func (h *Handler) sendGoodbyeMessage() error {
	return h.sendJSON(model.GoodbyeResponse{
		BaseResponse: h.base("goodbye"),
	})
}
