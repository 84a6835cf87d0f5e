package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/paiban/nurseshift/internal/app"
	"github.com/paiban/nurseshift/pkg/calendar"
	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/engine"
)

func parseUUID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s 不是合法的 UUID: %q", name, value)
	}
	return id, nil
}

func newMigrateCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.DB == nil {
				return errors.New("当前存储驱动不是 postgres，无需迁移")
			}
			applied, err := a.MigrateIfNeeded(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "数据库已是最新")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "已执行 %s\n", name)
			}
			return nil
		},
	}
}

func newGenerateCmd(a *app.App) *cobra.Command {
	var (
		dept, month, from, to, strategy string
		replace                         bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "为科室生成月度排班",
		RunE: func(cmd *cobra.Command, args []string) error {
			deptID, err := parseUUID("department", dept)
			if err != nil {
				return err
			}
			result, err := a.Engine.Generate(cmd.Context(), engine.Request{
				DepartmentID: deptID,
				Month:        model.Month(month),
				From:         model.Date(from),
				To:           model.Date(to),
				Replace:      replace,
				Strategy:     scheduler.Strategy(strategy),
			})
			if result != nil && (err == nil || result.Inserted > 0) {
				printResult(cmd, result)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&dept, "department", "d", "", "科室 ID")
	cmd.Flags().StringVarP(&month, "month", "m", "", "月份 YYYY-MM")
	cmd.Flags().StringVar(&from, "from", "", "起始日期，默认月初")
	cmd.Flags().StringVar(&to, "to", "", "结束日期，默认月末")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "greedy 或 annealing，默认取配置")
	cmd.Flags().BoolVar(&replace, "replace", false, "先取消窗口内已有排班")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func printResult(cmd *cobra.Command, r *engine.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "策略: %s\n", r.Strategy)
	fmt.Fprintf(out, "新增: %d  跳过: %d  取消: %d  耗时: %dms\n", r.Inserted, r.Skipped, r.Replaced, r.DurationMs)
	if r.Partial {
		fmt.Fprintln(out, "结果不完整（超时或写入失败）")
	}
	if len(r.Shortfalls) == 0 {
		return
	}
	fmt.Fprintf(out, "\n缺员 %d 处:\n", len(r.Shortfalls))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "日期\t班次\t角色\t需要\t已排")
	for _, sf := range r.Shortfalls {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", sf.Date, sf.ShiftID, sf.Role, sf.Required, sf.Assigned)
	}
	w.Flush()
}

func newPrioritiesCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "priorities",
		Short: "查看或调整排班优先级",
	}

	var dept string
	list := &cobra.Command{
		Use:   "list",
		Short: "列出科室优先级（首次访问写入默认值）",
		RunE: func(cmd *cobra.Command, args []string) error {
			deptID, err := parseUUID("department", dept)
			if err != nil {
				return err
			}
			res, err := a.Registry.List(cmd.Context(), deptID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "顺序\tID\t名称\t启用\t设置")
			for _, p := range res.Priorities {
				setting := "-"
				if v, ok := p.Setting(); ok {
					setting = fmt.Sprintf("%d %s", v, p.SettingUnit)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", p.Order, p.ID, p.Name, p.IsActive, setting)
			}
			w.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "共 %d 项，启用 %d 项\n", res.Total, res.ActiveCount)
			return nil
		},
	}
	list.Flags().StringVarP(&dept, "department", "d", "", "科室 ID")
	_ = list.MarkFlagRequired("department")

	swap := &cobra.Command{
		Use:   "swap <id1> <id2>",
		Short: "交换两个优先级的顺序",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id1, err := parseUUID("id1", args[0])
			if err != nil {
				return err
			}
			id2, err := parseUUID("id2", args[1])
			if err != nil {
				return err
			}
			if err := a.Registry.Swap(cmd.Context(), id1, id2); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "已交换")
			return nil
		},
	}

	cmd.AddCommand(list, swap)
	return cmd
}

func newCalendarCmd(a *app.App) *cobra.Command {
	var dept, month string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "查看科室月度工作日与假期",
		RunE: func(cmd *cobra.Command, args []string) error {
			deptID, err := parseUUID("department", dept)
			if err != nil {
				return err
			}
			m, err := model.ParseMonth(month)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := a.Store.GetDepartment(ctx, deptID)
			if err != nil {
				return err
			}
			if d == nil {
				return apperrors.NotFound("แผนก", deptID.String())
			}
			cal, err := calendar.Load(ctx, a.Store, deptID, model.DateRange{Start: m.First(), End: m.Last()})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "日期\t星期\t排班\t假期")
			for _, day := range cal.Meta(m) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", day.Date, day.Date.Weekday(), mark(day.IsWorking), mark(day.IsHoliday))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&dept, "department", "d", "", "科室 ID")
	cmd.Flags().StringVarP(&month, "month", "m", "", "月份 YYYY-MM")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func mark(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

func newServeCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.MigrateIfNeeded(cmd.Context()); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
}
