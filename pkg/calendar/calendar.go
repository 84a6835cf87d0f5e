// Package calendar 根据科室工作日与假期配置判断可排班日期
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/paiban/nurseshift/pkg/model"
	"github.com/paiban/nurseshift/pkg/store"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Calendar 科室日历
//
// 没有任何工作日配置时每天都是工作日；一旦存在配置，只有显式标记为工作日的星期才排班。
// 假期范围内的日期一律不排班。
type Calendar struct {
	configured bool
	weekdays   map[time.Weekday]bool
	holidays   []*model.Holiday
}

// New 创建日历
func New(workingDays []model.WorkingDay, holidays []*model.Holiday) *Calendar {
	c := &Calendar{
		configured: len(workingDays) > 0,
		weekdays:   make(map[time.Weekday]bool, 7),
		holidays:   holidays,
	}
	for _, wd := range workingDays {
		c.weekdays[wd.DayOfWeek] = wd.IsWorkingDay
	}
	return c
}

// Load 从存储加载日历
func Load(ctx context.Context, s store.CalendarStore, departmentID uuid.UUID, r model.DateRange) (*Calendar, error) {
	wds, err := s.ListWorkingDays(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("查询工作日失败: %w", err)
	}
	hs, err := s.ListHolidays(ctx, departmentID, r)
	if err != nil {
		return nil, fmt.Errorf("查询假期失败: %w", err)
	}
	return New(wds, hs), nil
}

// IsWorkingWeekday 星期是否为工作日
func (c *Calendar) IsWorkingWeekday(wd time.Weekday) bool {
	if !c.configured {
		return true
	}
	return c.weekdays[wd]
}

// IsHoliday 日期是否落在假期内
func (c *Calendar) IsHoliday(d model.Date) bool {
	for _, h := range c.holidays {
		if h.Contains(d) {
			return true
		}
	}
	return false
}

// IsWorkingDay 日期是否可排班
func (c *Calendar) IsWorkingDay(d model.Date) bool {
	return c.IsWorkingWeekday(d.Weekday()) && !c.IsHoliday(d)
}

// WorkingDays 枚举范围内所有可排班日期
func (c *Calendar) WorkingDays(r model.DateRange) ([]model.Date, error) {
	if r.End < r.Start {
		return nil, nil
	}

	opt := rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: r.Start.Time(),
		Until:   r.End.Time(),
	}
	if c.configured {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if c.weekdays[wd] {
				opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
			}
		}
		if len(opt.Byweekday) == 0 {
			return nil, nil
		}
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("构建日期规则失败: %w", err)
	}

	days := make([]model.Date, 0, 31)
	for _, t := range rule.All() {
		d := model.DateOf(t)
		if c.IsHoliday(d) {
			continue
		}
		days = append(days, d)
	}
	return days, nil
}

// Meta 返回月份每天的工作日/假期标记
func (c *Calendar) Meta(m model.Month) []model.CalendarDay {
	days := m.Days()
	out := make([]model.CalendarDay, 0, len(days))
	for _, d := range days {
		holiday := c.IsHoliday(d)
		out = append(out, model.CalendarDay{
			Date:      d,
			IsWorking: c.IsWorkingWeekday(d.Weekday()) && !holiday,
			IsHoliday: holiday,
		})
	}
	return out
}
