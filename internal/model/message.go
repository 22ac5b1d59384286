package model

// ClientMessage 客户端发送的文本消息结构
// Type 字段用于区分不同的消息类型
// Type 为 hello 时，用于初始化连接，需要带上 Layout 字段
// Type 为 chat 时，用于发送文字输入，需要带上 ChatText 字段
// Type 为 played 时，表示一段音频播放完成，需要带上 ClipID 字段
// Type 为 camera_done 时，表示镜头切换完成，需要带上 AvatarIndex 字段
// Type 为 pause / resume 时，用于暂停/恢复语音采集，不需要其他字段
type ClientMessage struct {
	Type        string `json:"type"`
	Layout      string `json:"layout,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	ChatText    string `json:"chat_text,omitempty"`
	ClipID      string `json:"clip_id,omitempty"`
	AvatarIndex int    `json:"avatar_index"`
}

type BaseResponse struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	ErrorCode int    `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// AvatarInfo 出场头像信息，随hello响应下发
type AvatarInfo struct {
	Index       int    `json:"index"`
	CharacterID string `json:"character_id"`
	Name        string `json:"name"`
	Nickname    string `json:"nickname,omitempty"`
}

type HelloResponse struct {
	BaseResponse
	Layout     string       `json:"layout"`
	SampleRate int          `json:"sample_rate"`
	Avatars    []AvatarInfo `json:"avatars"`
}

// AsrResponse 本轮识别出的用户文本
type AsrResponse struct {
	BaseResponse
	Result string `json:"result"`
}

// ChatResponse 模型的原始回复文本，含表情标签
type ChatResponse struct {
	BaseResponse
	Text string `json:"text"`
}

// SpeakResponse 一段待播放的合成音频
// 客户端播放完成后回执played消息；服务端按DurationMs设置兜底超时
type SpeakResponse struct {
	BaseResponse
	AvatarIndex int    `json:"avatar_index"`
	ClipID      string `json:"clip_id"`
	Emotion     string `json:"emotion"`
	Text        string `json:"text,omitempty"`
	Audio       string `json:"audio"` // base64编码的PCM16LE
	SampleRate  int    `json:"sample_rate"`
	DurationMs  int64  `json:"duration_ms"`
}

// CameraResponse 请求客户端把镜头切到指定头像
type CameraResponse struct {
	BaseResponse
	AvatarIndex int `json:"avatar_index"`
}

// AvatarFrame 单个头像的一帧表情快照
type AvatarFrame struct {
	Index    int     `json:"index"`
	EyesOpen bool    `json:"eyes_open"`
	Emotion  string  `json:"emotion"`
	LipSync  float64 `json:"lip_sync"`
}

// FrameResponse 按固定节拍下发的表情帧
type FrameResponse struct {
	BaseResponse
	Avatars []AvatarFrame `json:"avatars"`
}

type GoodbyeResponse struct {
	BaseResponse
}
