package llm

import (
	"context"
	"time"

	"miko/internal/schema"
)

type AskRequestParams struct {
	Timeout       time.Duration    // 模型请求超时时间，默认60秒
	SystemMessage schema.Message   // 系统消息--可不设置
	Messages      []schema.Message // 历史消息与本轮消息
}

type LLM interface {
	// Ask 纯文本请求
	// @return string: 模型响应的完整回复语
	Ask(ctx context.Context, params AskRequestParams) (string, error)
}
