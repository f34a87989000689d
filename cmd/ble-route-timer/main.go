package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ble-route-timer/internal/common/logger"
	"ble-route-timer/internal/config"
	"ble-route-timer/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 加载 .env（不存在时忽略）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "ble-route-timer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting ble-route-timer service")

	// 创建服务
	svc, err := service.NewRouteTimerService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create route timer service", zap.Error(err))
	}

	// 创建上下文，监听系统信号取消
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Received signal, stopping scan", zap.String("signal", sig.String()))
		cancel()
	}()

	// 执行一轮计时
	result, err := svc.Run(ctx)
	if err != nil && result == nil {
		log.Error("Race run failed", zap.Error(err))
		_ = svc.Stop(context.Background())
		os.Exit(1)
	}

	// 输出结果摘要
	for _, p := range result.Passages {
		log.Info("Passage",
			zap.String("point", p.Point),
			zap.String("type", p.Type),
			zap.Time("timestamp", p.Timestamp),
			zap.Float64("strength", p.Strength),
		)
	}
	if result.DurationSeconds != nil {
		log.Info("Total time",
			zap.Time("start", *result.StartTime),
			zap.Time("end", *result.EndTime),
			zap.Float64("duration_seconds", *result.DurationSeconds),
		)
	} else {
		log.Warn("Route was not completed", zap.String("stop_reason", result.StopReason))
	}

	if err := svc.Stop(context.Background()); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}

	log.Info("Service stopped")
}
