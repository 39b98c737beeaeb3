package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/logger"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

// CronApp Cron 应用结构
type CronApp struct {
	creditUsecase *biz.CreditUseCase
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	level := "info"
	if bc.Log != nil && bc.Log.Level != "" {
		level = bc.Log.Level
	}
	loggerInstance, loggerCleanup, err := logger.New(level)
	if err != nil {
		panic(err)
	}
	defer loggerCleanup()

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "credit-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 月度额度重置 - 每月1日 00:00 执行
	// 漏扫的账户仍由请求路径上的惰性重置兜底
	_, err = cronScheduler.AddFunc("0 0 0 1 * *", func() {
		logHelper.Info("[CRON] Starting monthly allowance reset...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		count, err := app.creditUsecase.ResetMonthlyAllowances(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Error resetting monthly allowances: %v", err)
			return
		}
		logHelper.Infof("[CRON] Monthly allowance reset completed: reset=%d", count)
	})
	if err != nil {
		logHelper.Errorf("Failed to add monthly reset job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Info("  - Monthly allowance reset: Every month on the 1st at 00:00")
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
