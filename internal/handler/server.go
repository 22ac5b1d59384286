package handler

import (
	"github.com/gin-gonic/gin"

	"miko/internal/config"
	"miko/internal/dialogue"
	"miko/internal/metrics"
	"miko/pkg/log"
)

// WebsocketServer websocket入口
// 对话引擎与指标在所有会话间共享，历史按会话键隔离
type WebsocketServer struct {
	cfg     *config.Config
	log     *log.Logger
	engine  *dialogue.Engine
	metrics *metrics.Metrics
}

func NewWebsocketServer(cfg *config.Config, logger *log.Logger, engine *dialogue.Engine, m *metrics.Metrics) *WebsocketServer {
	return &WebsocketServer{
		cfg:     cfg,
		log:     logger,
		engine:  engine,
		metrics: m,
	}
}

func (w *WebsocketServer) Server(ctx *gin.Context) {
	conn, err := newWebsocketConn(ctx.Writer, ctx.Request)
	if err != nil {
		w.log.Errorf("failed to create websocket connection: %v", err)
		return
	}

	w.log.Infof("client %s connected", ctx.ClientIP())

	handler := NewHandler(w.cfg, w.log, conn, w.engine, w.metrics)
	handler.Handle(ctx.Request.Context())
}
