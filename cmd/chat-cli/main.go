package main

import (
	"bufio"
	"context"
	"fmt"
	stdlog "log"
	"os"
	"strings"

	"miko/internal/character"
	"miko/internal/config"
	"miko/internal/dialogue"
	"miko/internal/emotion"
	"miko/internal/llm/openai"
	"miko/pkg/log"
	"miko/pkg/util"
)

// 不带语音链路的终端对话，直接调试人设与表情拆分
func main() {
	cfg := config.NewConfig()
	if cfg == nil {
		panic("failed to load config")
	}

	logger := log.NewLogger(&log.Option{
		Mode:        cfg.Server.Mode,
		ServiceName: "miko",
		EncodeType:  log.EncodeTypeConsole,
	})

	llmClient := openai.NewLLM(cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	llmClient.Temperature = cfg.LLM.Temperature
	engine := dialogue.NewEngine(llmClient, logger)

	layout := character.Layout(cfg.DefaultLayout)
	if !layout.IsValid() {
		layout = character.LayoutSingle
	}
	persona, err := castPersona(cfg, layout)
	if err != nil {
		panic(err)
	}

	var chatRound int
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("input your query：")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if isExit(cfg, input) {
			stdlog.Println("Good bye!")
			return
		}

		chatRound++
		reply, err := engine.Reply(context.Background(), persona, layout.SessionKey(), input)
		if err != nil {
			stdlog.Printf("chat round: %d\n%s\n", chatRound, err.Error())
			continue
		}
		for _, seg := range emotion.Split(reply) {
			fmt.Printf("【%s】%s\n", seg.Emotion.Label(), seg.Content)
		}
	}
}

// castPersona 取布局首个出场角色的人设
func castPersona(cfg *config.Config, layout character.Layout) (*character.Character, error) {
	registry, err := character.NewRegistry(cfg.Characters)
	if err != nil {
		return nil, err
	}
	layoutCfg, ok := cfg.Layouts[string(layout)]
	if !ok {
		return nil, fmt.Errorf("layout %s not configured", layout)
	}
	cast, err := registry.Cast(layout, layoutCfg.Characters...)
	if err != nil {
		return nil, err
	}
	return cast[0], nil
}

func isExit(cfg *config.Config, text string) bool {
	text = util.RemoveAllPunctuation(text)
	for _, cmd := range cfg.CMDExit {
		if text == cmd {
			return true
		}
	}
	return false
}
