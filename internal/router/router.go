package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"miko/internal/config"
	"miko/internal/dialogue"
	"miko/internal/handler"
	"miko/internal/metrics"
	"miko/pkg/log"
)

func NewRouter(cfg *config.Config, logger *log.Logger, engine *dialogue.Engine) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ws := handler.NewWebsocketServer(cfg, logger, engine, m)
	r.GET("/miko/v1", ws.Server)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	return r
}
