package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"miko/internal/config"
	"miko/internal/dialogue"
	"miko/internal/llm/openai"
	"miko/internal/router"
	"miko/pkg/log"
)

func main() {
	cfg := config.NewConfig()
	if cfg == nil {
		panic("failed to load config")
	}

	logger := log.NewLogger(&log.Option{
		Mode:        cfg.Server.Mode,
		ServiceName: "miko",
		EncodeType:  log.EncodeTypeJson,
	})

	llmClient := openai.NewLLM(cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	llmClient.Temperature = cfg.LLM.Temperature
	engine := dialogue.NewEngine(llmClient, logger)

	r := router.NewRouter(cfg, logger, engine)
	s := http.Server{
		Addr:           cfg.Server.IP + ":" + cfg.Server.Port,
		Handler:        r,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdlog.Fatalf("s.ListenAndServe err: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM) // 接收系统信号量
	<-quit
	stdlog.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		stdlog.Fatal("server forced to shutdown:", err)
	}

	stdlog.Println("server exiting")
}
