package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"miko/internal/llm"
	"miko/internal/schema"
)

type LLM struct {
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
	// 最大重试次数
	MaxRetries int
}

func NewLLM(model, apiKey, baseURL string) *LLM {
	return &LLM{
		Model:      model,
		APIKey:     apiKey,
		BaseURL:    baseURL,
		MaxRetries: 3,
	}
}

func (l *LLM) formatMessages(systemMessage schema.Message, messages []schema.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var formattedMessages []openai.ChatCompletionMessageParamUnion
	if systemMessage.Content != "" {
		formattedMessages = make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
		formattedMessages = append(formattedMessages, openai.SystemMessage(systemMessage.Content))
	} else {
		formattedMessages = make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	}

	isIncludeUserMessage := false
	for _, msg := range messages {
		switch msg.Role {
		case schema.RoleUser:
			isIncludeUserMessage = true
			formattedMessages = append(formattedMessages, openai.UserMessage(msg.Content))
		case schema.RoleAssistant:
			formattedMessages = append(formattedMessages, openai.AssistantMessage(msg.Content))
		case schema.RoleSystem:
			formattedMessages = append(formattedMessages, openai.SystemMessage(msg.Content))
		default:
			return nil, errors.New("invalid role")
		}
	}
	if !isIncludeUserMessage {
		return nil, errors.New("messages must contain at least one user message")
	}
	return formattedMessages, nil
}

func (l *LLM) Ask(ctx context.Context, params llm.AskRequestParams) (string, error) {
	formattedMessages, err := l.formatMessages(params.SystemMessage, params.Messages)
	if err != nil {
		return "", fmt.Errorf("failed to format messages: %v", err)
	}

	if params.Timeout <= 0 {
		params.Timeout = 60 * time.Second
	}

	client := openai.NewClient(
		option.WithBaseURL(l.BaseURL),
		option.WithAPIKey(l.APIKey),
		option.WithMaxRetries(l.MaxRetries),
		option.WithRequestTimeout(params.Timeout),
	)
	response, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       l.Model,
		Messages:    formattedMessages,
		Temperature: openai.Float(l.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("failed to ask: %v", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("unexpected empty choices in ask")
	}
	return response.Choices[0].Message.Content, nil
}
