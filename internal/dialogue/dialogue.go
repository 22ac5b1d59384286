package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"miko/internal/character"
	"miko/internal/llm"
	"miko/internal/schema"
	"miko/pkg/log"
)

// ErrNoReply 生成失败或生成结果为空
// 调用方应将其视为空结果的一轮对话，而不是致命错误
var ErrNoReply = errors.New("no reply from model")

// promptEnd 追加在每个人设片段末尾的固定指令，强制模型以表情标签开头作答
const promptEnd = "你回复我的格式是：“【表情】内容”，其中，表情只能根据内容从“自然”、“快乐”、“愤怒”、“悲伤”、“放松”中选一个，" +
	"如果不知道选，就选“自然”。例如，你会回复我：“【快乐】我今天很开心。”你也可能回复我：“【自然】到吃饭时间了。”"

// questionPrefix 本轮提问的前缀
const questionPrefix = "我的问题是："

// Engine 对话引擎
// 持有各会话的历史消息，并基于角色人设逐轮生成回复
type Engine struct {
	llm     llm.LLM
	log     *log.Logger
	history *HistoryStore
}

func NewEngine(llmClient llm.LLM, logger *log.Logger) *Engine {
	return &Engine{
		llm:     llmClient,
		log:     logger,
		history: NewHistoryStore(),
	}
}

// History 引擎持有的历史存储
func (e *Engine) History() *HistoryStore {
	return e.history
}

// Reply 基于角色人设与会话历史生成一条回复，并把问答写入历史
// @param ch: 用于组织人设提示词的角色
// @param sessionKey: 会话键，同一布局共享历史
// @param utterance: 用户本轮说的话
// @return string: 模型的原始回复文本，含表情标签
func (e *Engine) Reply(ctx context.Context, ch *character.Character, sessionKey, utterance string) (string, error) {
	if strings.TrimSpace(utterance) == "" {
		return "", ErrNoReply
	}

	messages := e.assembleMessages(ch, sessionKey, utterance)
	reply, err := e.llm.Ask(ctx, llm.AskRequestParams{Messages: messages})
	if err != nil {
		e.log.Errorf("failed to generate reply: %v", err)
		return "", fmt.Errorf("%w: %v", ErrNoReply, err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrNoReply
	}

	e.history.Append(sessionKey,
		schema.UserMessage(utterance),
		schema.AssistantMessage(reply),
	)
	return reply, nil
}

// assembleMessages 组装本轮请求消息：历史 + 人设片段（带表情指令）+ 本轮提问
func (e *Engine) assembleMessages(ch *character.Character, sessionKey, utterance string) []schema.Message {
	history := e.history.Get(sessionKey)
	messages := make([]schema.Message, 0, len(history)+len(ch.PromptTemplate)+1)
	messages = append(messages, history...)

	for _, fragment := range ch.PromptTemplate {
		content := fragment.Content + promptEnd
		if fragment.Role == character.PromptRoleAI {
			messages = append(messages, schema.AssistantMessage(content))
		} else {
			messages = append(messages, schema.UserMessage(content))
		}
	}

	messages = append(messages, schema.UserMessage(questionPrefix+utterance))
	return messages
}
