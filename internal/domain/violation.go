package domain

import "strconv"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank 返回严重程度的排序值，critical > warning > info
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// MaxSeverity 返回两者中更严重的一个
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

type Scope string

const (
	ScopeSchedule Scope = "schedule"
	ScopeDay      Scope = "day"
	ScopeResource Scope = "resource"
	ScopeWeek     Scope = "week"
	ScopeMonth    Scope = "month"
)

// 规则类别的固定分类，类别同时也是前端渲染文案的 key
type ViolationCategory string

const (
	ViolationEmptySchedule     ViolationCategory = "empty-schedule"
	ViolationUncoveredDay      ViolationCategory = "uncovered-day"
	ViolationStaffingShortfall ViolationCategory = "staffing-shortfall"
	ViolationRoleMinShortfall  ViolationCategory = "role-min-shortfall"
	ViolationRoleMaxExceeded   ViolationCategory = "role-max-exceeded"
	ViolationAbsenceConflict   ViolationCategory = "absence-conflict"
	ViolationHoursPerWeek      ViolationCategory = "hours-per-week-exceeded"
	ViolationDaysPerWeek       ViolationCategory = "days-per-week-exceeded"
	ViolationConsecutiveDays   ViolationCategory = "consecutive-days-exceeded"
	ViolationInsufficientRest  ViolationCategory = "insufficient-consecutive-rest"
)

// Violation 是一次规则评估的业务发现，属于成功输出而非错误。
// 它从不单独持久化，每次都由 (主数据, 条目, 配置) 重新计算得到。
// Day / ResourceID / ISOWeek 按 Scope 填充，Meta 携带渲染文案所需的数值。
type Violation struct {
	Category   ViolationCategory `json:"category"`
	Severity   Severity          `json:"severity"`
	Scope      Scope             `json:"scope"`
	Day        *string           `json:"day,omitempty"` // YYYY-MM-DD
	ResourceID *int64            `json:"resourceID,omitempty"`
	ISOWeek    *string           `json:"isoWeek,omitempty"` // 例如 2025-W03
	Meta       map[string]any    `json:"meta"`
}

// Key 返回违规的内容标识，用于将建议关联到它所解决的违规
func (v *Violation) Key() string {
	key := string(v.Category)
	if v.Day != nil {
		key += ":" + *v.Day
	}
	if v.ISOWeek != nil {
		key += ":" + *v.ISOWeek
	}
	if v.ResourceID != nil {
		key += ":" + strconv.FormatInt(*v.ResourceID, 10)
	}
	return key
}
