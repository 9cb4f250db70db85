package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rupped-storefront/internal/config"
	"rupped-storefront/internal/handler"
	"rupped-storefront/internal/metrics"
	"rupped-storefront/internal/middleware"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/service"
	"rupped-storefront/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/negotiator.yaml", "配置文件路径")
	flag.Parse()

	_ = godotenv.Load(".env")

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx := context.Background()

	chatModel, err := model.NewChatModel(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create chat model: %v", err)
	}

	negotiator, err := service.NewNegotiator(ctx, chatModel, service.NegotiatorOptions{
		Provider:      cfg.Model.Provider,
		SystemPrompt:  cfg.Negotiator.SystemPrompt,
		HistoryWindow: cfg.Negotiator.HistoryWindow,
	})
	if err != nil {
		logger.Fatalf("Failed to build negotiator: %v", err)
	}
	if negotiator.Mock() {
		logger.Warn("No chat model configured, answering with the mock negotiator")
	}

	backendHandler := handler.NewBackendHandler(negotiator, service.NewOllamaClient(cfg.Ollama))

	router := setupRouter(cfg, backendHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Negotiator 启动在端口 %d (provider=%s)", cfg.Server.Port, negotiator.Provider())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	if err := server.Close(); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	logger.Info("服务器已关闭")
}

func setupRouter(cfg *config.Config, backendHandler *handler.BackendHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	handler.RegisterNegotiator(router, backendHandler)

	return router
}
