// Package cli 管理命令：迁移、生成排班、优先级维护、日历查看、启动服务
package cli

import (
	"github.com/spf13/cobra"

	"github.com/paiban/nurseshift/internal/app"
)

// NewRootCmd 创建 nurseshift 根命令
func NewRootCmd(a *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:           "nurseshift",
		Short:         "护理排班管理工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(a),
		newGenerateCmd(a),
		newPrioritiesCmd(a),
		newCalendarCmd(a),
		newServeCmd(a),
	)
	return root
}
