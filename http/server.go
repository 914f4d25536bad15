// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storkagent/tools"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	log    *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, t *tools.Tools, log *zap.Logger) *Server {
	mux := http.NewServeMux()

	h := &Handler{tools: t, log: log}
	h.Register(mux)

	streamer := NewQuoteStreamer(t, log)
	mux.HandleFunc("GET /api/ws/quotes", streamer.Handle)
	mux.Handle("GET /metrics", promhttp.Handler())

	chain := Chain(
		RecoveryMiddleware(log),
		LoggerMiddleware(log),
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		log:    log,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 优雅关闭
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
