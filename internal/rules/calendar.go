package rules

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

const MonthLayout = "2006-01"

type DayType string

const (
	DayTypeWeekday DayType = "weekday"
	DayTypeWeekend DayType = "weekend"
	DayTypeHoliday DayType = "holiday"
)

// Calendar 携带月份相关的日历信息，节假日集合由外部的日历协作方提供
type Calendar struct {
	holidays map[string]bool // YYYY-MM-DD
}

func NewCalendar(holidays []string) *Calendar {
	set := make(map[string]bool, len(holidays))
	for _, day := range holidays {
		set[day] = true
	}
	return &Calendar{holidays: set}
}

// DayType 返回某一天的日型，节假日优先于周末
func (c *Calendar) DayType(day time.Time) DayType {
	if c.holidays[day.Format(domain.DateLayout)] {
		return DayTypeHoliday
	}
	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		return DayTypeWeekend
	}
	return DayTypeWeekday
}

// MonthDays 按时间顺序返回某个月的所有日期
func MonthDays(month string) ([]time.Time, error) {
	first, err := time.Parse(MonthLayout, month)
	if err != nil {
		return nil, fmt.Errorf("月份格式无效（应为 YYYY-MM）: %w", err)
	}

	days := make([]time.Time, 0, 31)
	for current := first; current.Month() == first.Month(); current = current.AddDate(0, 0, 1) {
		days = append(days, current)
	}
	return days, nil
}

// ISOWeekLabel 返回 ISO-8601 的周标签，例如 2025-W03。
// 月初月末的日期可能属于相邻年份的周。
func ISOWeekLabel(day time.Time) string {
	year, week := day.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
