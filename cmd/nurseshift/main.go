// nurseshift 管理命令入口
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/paiban/nurseshift/internal/app"
	"github.com/paiban/nurseshift/internal/cli"
	"github.com/paiban/nurseshift/internal/config"
	"github.com/paiban/nurseshift/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	// 命令输出占用标准输出
	if cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	logger.Init(cfg.Log)

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	if err := cli.NewRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		return 1
	}
	return 0
}
