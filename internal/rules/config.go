package rules

import (
	"fmt"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// RoleBounds 是某个岗位每天允许的人数区间，
// 两个边界都可以缺省，越界时按各自配置的严重程度上报
type RoleBounds struct {
	Min         *int            `json:"min,omitempty"`
	Max         *int            `json:"max,omitempty"`
	MinSeverity domain.Severity `json:"minSeverity"`
	MaxSeverity domain.Severity `json:"maxSeverity"`
}

// StaffingRules 按日型（工作日 / 周末 / 节假日）配置每日最低人数，
// HardMinimum 是硬下限，低于它时缺员违规升级为 critical
type StaffingRules struct {
	WeekdayMinimum int                                `json:"weekdayMinimum"`
	WeekendMinimum int                                `json:"weekendMinimum"`
	HolidayMinimum int                                `json:"holidayMinimum"`
	HardMinimum    int                                `json:"hardMinimum"`
	Composition    map[domain.ResourceRole]RoleBounds `json:"composition"`
}

// MinimumFor 返回指定日型的最低人数
func (s *StaffingRules) MinimumFor(dayType DayType) int {
	switch dayType {
	case DayTypeHoliday:
		return s.HolidayMinimum
	case DayTypeWeekend:
		return s.WeekendMinimum
	default:
		return s.WeekdayMinimum
	}
}

// WorkingTimeRules 是工时类限制。
// Max* 为软上限（超过报 warning），Critical* 为硬上限（超过报 critical）。
type WorkingTimeRules struct {
	MaxHoursPerWeek                    float64 `json:"maxHoursPerWeek"`
	CriticalHoursPerWeek               float64 `json:"criticalHoursPerWeek"`
	MaxWorkingDaysPerWeek              int     `json:"maxWorkingDaysPerWeek"`
	CriticalWorkingDaysPerWeek         int     `json:"criticalWorkingDaysPerWeek"`
	MaxConsecutiveWorkingDays          int     `json:"maxConsecutiveWorkingDays"`
	RequiredConsecutiveDaysOffPerMonth int     `json:"requiredConsecutiveDaysOffPerMonth"`
}

// ApprovalRules 控制发布闸门：critical 违规始终阻塞发布，
// BlockOnWarnings 决定 warning 是否也阻塞
type ApprovalRules struct {
	BlockOnWarnings bool `json:"blockOnWarnings"`
}

type RuleConfig struct {
	WorkingTime WorkingTimeRules `json:"workingTime"`
	Staffing    StaffingRules    `json:"staffing"`
	Approval    ApprovalRules    `json:"approval"`
}

func (c *RuleConfig) Validate() error {
	if c.WorkingTime.MaxHoursPerWeek <= 0 {
		return fmt.Errorf("每周最大工时必须大于 0")
	}
	if c.WorkingTime.CriticalHoursPerWeek < c.WorkingTime.MaxHoursPerWeek {
		return fmt.Errorf("每周工时硬上限不能小于软上限")
	}
	if c.WorkingTime.MaxWorkingDaysPerWeek <= 0 || c.WorkingTime.MaxWorkingDaysPerWeek > 7 {
		return fmt.Errorf("每周最大工作天数必须在 1 到 7 之间")
	}
	if c.WorkingTime.CriticalWorkingDaysPerWeek < c.WorkingTime.MaxWorkingDaysPerWeek {
		return fmt.Errorf("每周工作天数硬上限不能小于软上限")
	}
	if c.WorkingTime.MaxConsecutiveWorkingDays <= 0 {
		return fmt.Errorf("最大连续工作天数必须大于 0")
	}
	if c.Staffing.HardMinimum > c.Staffing.WeekdayMinimum {
		return fmt.Errorf("每日人数硬下限不能大于工作日最低人数")
	}
	for role, bounds := range c.Staffing.Composition {
		if bounds.Min != nil && bounds.Max != nil && *bounds.Min > *bounds.Max {
			return fmt.Errorf("岗位 %s 的人数下限不能大于上限", role)
		}
	}
	return nil
}

func intPtr(n int) *int { return &n }

// DefaultRules 返回内置的默认规则，数据库中没有启用的规则配置时使用
func DefaultRules() *RuleConfig {
	return &RuleConfig{
		WorkingTime: WorkingTimeRules{
			MaxHoursPerWeek:                    45,
			CriticalHoursPerWeek:               50,
			MaxWorkingDaysPerWeek:              5,
			CriticalWorkingDaysPerWeek:         6,
			MaxConsecutiveWorkingDays:          5,
			RequiredConsecutiveDaysOffPerMonth: 2,
		},
		Staffing: StaffingRules{
			WeekdayMinimum: 3,
			WeekendMinimum: 2,
			HolidayMinimum: 2,
			HardMinimum:    2,
			Composition: map[domain.ResourceRole]RoleBounds{
				domain.ResourceRoleCook: {
					Min:         intPtr(1),
					Max:         intPtr(2),
					MinSeverity: domain.SeverityCritical,
					MaxSeverity: domain.SeverityWarning,
				},
				domain.ResourceRoleKitchenAssistant: {
					Min:         intPtr(1),
					MinSeverity: domain.SeverityWarning,
					MaxSeverity: domain.SeverityWarning,
				},
			},
		},
		Approval: ApprovalRules{
			BlockOnWarnings: false,
		},
	}
}
