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

	"rupped-storefront/internal/catalog"
	"rupped-storefront/internal/config"
	"rupped-storefront/internal/handler"
	"rupped-storefront/internal/metrics"
	"rupped-storefront/internal/middleware"
	"rupped-storefront/internal/relay"
	"rupped-storefront/internal/service"
	"rupped-storefront/internal/storage"
	"rupped-storefront/internal/utils"
	"rupped-storefront/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/storefront.yaml", "配置文件路径")
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

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatalf("Failed to load catalog: %v", err)
	}

	store, err := storage.New(cfg.Storage.Type, cfg.Storage.DataDir, cfg.Storage.CacheSize)
	if err != nil {
		logger.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.Init(); err != nil {
		logger.Fatalf("Failed to init storage: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化服务
	catalogService := service.NewCatalogService(cat)
	cartService := service.NewCartService(store, cat, cfg.Cart.SeedDemoItems, cfg.Cart.TTL)
	cartService.StartCleanup(ctx, cfg.Cart.CleanupInterval)

	relayClient := utils.NewHTTPClient(cfg.Relay.Timeout)
	negotiateRelay := relay.New(cfg.Relay.UpstreamURL, relayClient)

	setupService := service.NewSetupService(
		service.NewNegotiatorClient(cfg.Negotiator.BaseURL, utils.NewHTTPClient(0)),
		cfg.Setup.ProbeCron,
		cfg.Setup.ProbeTimeout,
		service.CatalogCheck(catalogService),
		service.CartPricingCheck(cartService),
		service.NegotiateAPICheck(cfg.Relay.UpstreamURL, utils.NewHTTPClient(30*time.Second)),
	)
	if err := setupService.Start(ctx); err != nil {
		logger.Fatalf("Failed to start setup prober: %v", err)
	}

	// 初始化处理器
	handlers := handler.Storefront{
		Negotiate: handler.NewNegotiateHandler(negotiateRelay),
		Catalog:   handler.NewCatalogHandler(catalogService),
		Cart:      handler.NewCartHandler(cartService),
		Setup:     handler.NewSetupHandler(setupService),
	}

	// 创建路由
	router := setupRouter(cfg, handlers)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// 启动服务器
	go func() {
		logger.Infof("Storefront 启动在端口 %d, negotiation upstream %s", cfg.Server.Port, negotiateRelay.UpstreamURL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	cancel()
	if err := server.Close(); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	if err := store.Backup(); err != nil {
		logger.Errorf("Cart backup failed: %v", err)
	}
	if err := store.Close(); err != nil {
		logger.Errorf("Failed to close storage: %v", err)
	}
	logger.Info("服务器已关闭")
}

func setupRouter(cfg *config.Config, handlers handler.Storefront) *gin.Engine {
	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 中间件
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(gin.Recovery())

	// CORS配置
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	var pullLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		pullLimit = middleware.RateLimit(middleware.NewLimiterPool(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
	}

	// API路由
	handler.RegisterStorefront(router, handlers, pullLimit)

	return router
}
