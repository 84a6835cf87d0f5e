// nurseshift 排班服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paiban/nurseshift/internal/app"
	"github.com/paiban/nurseshift/internal/config"
	"github.com/paiban/nurseshift/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.App.Version == "dev" {
		cfg.App.Version = Version
	}
	logger.Init(cfg.Log)

	fmt.Printf("nurseshift 排班服务 v%s\n", cfg.App.Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(initCtx, cfg)
	if err == nil {
		_, err = a.MigrateIfNeeded(initCtx)
	}
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("服务初始化失败")
		if a != nil {
			a.Close()
		}
		os.Exit(1)
	}
	defer a.Close()

	// 优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器异常退出")
	}
}
