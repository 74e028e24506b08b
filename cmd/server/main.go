package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usdtshop/internal/config"
	"usdtshop/internal/explorer"
	"usdtshop/internal/handler"
	"usdtshop/internal/infrastructure/cache"
	"usdtshop/internal/infrastructure/database"
	"usdtshop/internal/infrastructure/mq"
	"usdtshop/internal/job"
	"usdtshop/internal/repository"
	"usdtshop/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka（通知外发通道）
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 写入缺省业务配置
	settingRepo := repository.NewSettingRepository(db)
	if err := settingRepo.SeedDefaults(context.Background()); err != nil {
		log.Fatalf("初始化业务配置失败: %v", err)
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	source := explorer.NewHTTPSource(&cfg.Explorer, settingRepo)
	reconciler := job.NewReconciler(db, cfg, source)
	go reconciler.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
