package rules

import (
	"math"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// Evaluate 对候选排班做一次完整的规则评估，纯函数且输出顺序确定：
// 先按日期升序，再按资源 ID 升序，最后按固定的规则类别优先级。
// 相同输入必然产生逐字节相同的违规列表，方便前端和测试做比对。
//
// 条目引用了不存在的资源或班次属于数据完整性错误，评估直接中止。
func Evaluate(
	month string,
	resources []*domain.Resource,
	shifts []*domain.Shift,
	entries []*domain.PlanningEntry,
	cal *Calendar,
	cfg *RuleConfig,
) ([]domain.Violation, error) {
	days, err := MonthDays(month)
	if err != nil {
		return nil, domain.NewDataIntegrityError("无法解析月份 %s: %v", month, err)
	}

	resourceByID := make(map[int64]*domain.Resource, len(resources))
	for _, r := range resources {
		resourceByID[r.ID] = r
	}
	shiftByCode := make(map[int32]*domain.Shift, len(shifts))
	for _, s := range shifts {
		shiftByCode[s.Code] = s
	}

	for _, e := range entries {
		if _, ok := resourceByID[e.ResourceID]; !ok {
			return nil, domain.NewDataIntegrityError("条目引用了不存在的资源 %d", e.ResourceID)
		}
		if e.ShiftCode != nil {
			if _, ok := shiftByCode[*e.ShiftCode]; !ok {
				return nil, domain.NewDataIntegrityError("条目引用了不存在的班次 %d", *e.ShiftCode)
			}
		}
	}

	violations := []domain.Violation{}

	// 空排班短路所有其他规则
	if len(entries) == 0 {
		violations = append(violations, domain.Violation{
			Category: domain.ViolationEmptySchedule,
			Severity: domain.SeverityCritical,
			Scope:    domain.ScopeSchedule,
			Meta:     map[string]any{"month": month},
		})
		return violations, nil
	}

	state := collectState(days, entries, resourceByID, shiftByCode)

	violations = append(violations, evaluateDays(days, state, resourceByID, cal, cfg)...)
	violations = append(violations, evaluateWeeks(state, cfg)...)
	violations = append(violations, evaluateResources(days, state, cfg)...)

	return violations, nil
}

type evalState struct {
	workingByDay map[string][]*domain.PlanningEntry // 仅实际出勤的条目，已按资源 ID 排序
	roleCounts   map[string]map[domain.ResourceRole]int
	weekOrder    []string
	weeklyHours  map[string]map[int64]float64
	weeklyDays   map[string]map[int64]int
	workedDates  map[int64]map[string]bool
}

func collectState(
	days []time.Time,
	entries []*domain.PlanningEntry,
	resourceByID map[int64]*domain.Resource,
	shiftByCode map[int32]*domain.Shift,
) *evalState {
	state := &evalState{
		workingByDay: make(map[string][]*domain.PlanningEntry),
		roleCounts:   make(map[string]map[domain.ResourceRole]int),
		weeklyHours:  make(map[string]map[int64]float64),
		weeklyDays:   make(map[string]map[int64]int),
		workedDates:  make(map[int64]map[string]bool),
	}

	seenWeeks := make(map[string]bool)
	for _, day := range days {
		week := ISOWeekLabel(day)
		if !seenWeeks[week] {
			seenWeeks[week] = true
			state.weekOrder = append(state.weekOrder, week)
		}
	}

	for _, e := range entries {
		// 缺勤条目占用格子但计 0 工时，也不计入工作天数
		if !e.IsWorking() {
			continue
		}

		ds := e.DateString()
		state.workingByDay[ds] = append(state.workingByDay[ds], e)

		resource := resourceByID[e.ResourceID]
		if state.roleCounts[ds] == nil {
			state.roleCounts[ds] = make(map[domain.ResourceRole]int)
		}
		state.roleCounts[ds][resource.Role]++

		week := ISOWeekLabel(e.Date)
		if state.weeklyHours[week] == nil {
			state.weeklyHours[week] = make(map[int64]float64)
			state.weeklyDays[week] = make(map[int64]int)
		}
		state.weeklyHours[week][e.ResourceID] += shiftByCode[*e.ShiftCode].Hours

		if state.workedDates[e.ResourceID] == nil {
			state.workedDates[e.ResourceID] = make(map[string]bool)
		}
		if !state.workedDates[e.ResourceID][ds] {
			state.weeklyDays[week][e.ResourceID]++
		}
		state.workedDates[e.ResourceID][ds] = true
	}

	for _, dayEntries := range state.workingByDay {
		sort.Slice(dayEntries, func(i, j int) bool {
			return dayEntries[i].ResourceID < dayEntries[j].ResourceID
		})
	}

	return state
}

func evaluateDays(
	days []time.Time,
	state *evalState,
	resourceByID map[int64]*domain.Resource,
	cal *Calendar,
	cfg *RuleConfig,
) []domain.Violation {
	violations := []domain.Violation{}

	roleOrder := make([]domain.ResourceRole, 0, len(cfg.Staffing.Composition))
	for role := range cfg.Staffing.Composition {
		roleOrder = append(roleOrder, role)
	}
	sort.Slice(roleOrder, func(i, j int) bool { return roleOrder[i] < roleOrder[j] })

	for _, day := range days {
		ds := day.Format(domain.DateLayout)
		working := state.workingByDay[ds]
		assigned := len(working)

		if assigned == 0 {
			// 全天无人值班时只报 uncovered-day，不再重复上报缺员和岗位缺口
			violations = append(violations, domain.Violation{
				Category: domain.ViolationUncoveredDay,
				Severity: domain.SeverityCritical,
				Scope:    domain.ScopeDay,
				Day:      &ds,
				Meta:     map[string]any{"date": ds},
			})
			continue
		}

		dayType := cal.DayType(day)
		required := cfg.Staffing.MinimumFor(dayType)
		if assigned < required {
			severity := domain.SeverityWarning
			if assigned < cfg.Staffing.HardMinimum {
				severity = domain.SeverityCritical
			}
			violations = append(violations, domain.Violation{
				Category: domain.ViolationStaffingShortfall,
				Severity: severity,
				Scope:    domain.ScopeDay,
				Day:      &ds,
				Meta: map[string]any{
					"date":     ds,
					"assigned": assigned,
					"required": required,
					"dayType":  string(dayType),
				},
			})
		}

		for _, role := range roleOrder {
			bounds := cfg.Staffing.Composition[role]
			roleAssigned := state.roleCounts[ds][role]

			if bounds.Min != nil && roleAssigned < *bounds.Min {
				violations = append(violations, domain.Violation{
					Category: domain.ViolationRoleMinShortfall,
					Severity: bounds.MinSeverity,
					Scope:    domain.ScopeDay,
					Day:      &ds,
					Meta: map[string]any{
						"date":     ds,
						"role":     string(role),
						"assigned": roleAssigned,
						"min":      *bounds.Min,
					},
				})
			}
			if bounds.Max != nil && roleAssigned > *bounds.Max {
				violations = append(violations, domain.Violation{
					Category: domain.ViolationRoleMaxExceeded,
					Severity: bounds.MaxSeverity,
					Scope:    domain.ScopeDay,
					Day:      &ds,
					Meta: map[string]any{
						"date":     ds,
						"role":     string(role),
						"assigned": roleAssigned,
						"max":      *bounds.Max,
					},
				})
			}
		}

		// 资源在缺勤或模板不可用的日期被安排了班次
		for _, e := range working {
			resource := resourceByID[e.ResourceID]
			resourceID := e.ResourceID

			if absence := resource.AbsenceOn(day); absence != nil {
				violations = append(violations, domain.Violation{
					Category:   domain.ViolationAbsenceConflict,
					Severity:   domain.SeverityCritical,
					Scope:      domain.ScopeDay,
					Day:        &ds,
					ResourceID: &resourceID,
					Meta: map[string]any{
						"date":        ds,
						"resourceID":  resourceID,
						"reason":      "absence",
						"absenceType": string(absence.AbsenceType),
					},
				})
			} else if !resource.AvailableOn(day) {
				violations = append(violations, domain.Violation{
					Category:   domain.ViolationAbsenceConflict,
					Severity:   domain.SeverityCritical,
					Scope:      domain.ScopeDay,
					Day:        &ds,
					ResourceID: &resourceID,
					Meta: map[string]any{
						"date":       ds,
						"resourceID": resourceID,
						"reason":     "unavailable",
					},
				})
			}
		}
	}

	return violations
}

func evaluateWeeks(state *evalState, cfg *RuleConfig) []domain.Violation {
	violations := []domain.Violation{}
	wt := cfg.WorkingTime

	for _, week := range state.weekOrder {
		hoursByResource := state.weeklyHours[week]
		if hoursByResource == nil {
			continue
		}

		resourceIDs := make([]int64, 0, len(hoursByResource))
		for rid := range hoursByResource {
			resourceIDs = append(resourceIDs, rid)
		}
		sort.Slice(resourceIDs, func(i, j int) bool { return resourceIDs[i] < resourceIDs[j] })

		for _, rid := range resourceIDs {
			rid := rid
			weekLabel := week

			hours := hoursByResource[rid]
			if hours > wt.MaxHoursPerWeek {
				severity := domain.SeverityWarning
				if hours > wt.CriticalHoursPerWeek {
					severity = domain.SeverityCritical
				}
				violations = append(violations, domain.Violation{
					Category:   domain.ViolationHoursPerWeek,
					Severity:   severity,
					Scope:      domain.ScopeWeek,
					ResourceID: &rid,
					ISOWeek:    &weekLabel,
					Meta: map[string]any{
						"resourceID": rid,
						"week":       weekLabel,
						"hours":      math.Round(hours*100) / 100,
						"limit":      wt.MaxHoursPerWeek,
					},
				})
			}

			daysWorked := state.weeklyDays[week][rid]
			if daysWorked > wt.MaxWorkingDaysPerWeek {
				severity := domain.SeverityWarning
				if daysWorked > wt.CriticalWorkingDaysPerWeek {
					severity = domain.SeverityCritical
				}
				violations = append(violations, domain.Violation{
					Category:   domain.ViolationDaysPerWeek,
					Severity:   severity,
					Scope:      domain.ScopeWeek,
					ResourceID: &rid,
					ISOWeek:    &weekLabel,
					Meta: map[string]any{
						"resourceID": rid,
						"week":       weekLabel,
						"days":       daysWorked,
						"limit":      wt.MaxWorkingDaysPerWeek,
					},
				})
			}
		}
	}

	return violations
}

func evaluateResources(days []time.Time, state *evalState, cfg *RuleConfig) []domain.Violation {
	violations := []domain.Violation{}
	wt := cfg.WorkingTime

	resourceIDs := make([]int64, 0, len(state.workedDates))
	for rid := range state.workedDates {
		resourceIDs = append(resourceIDs, rid)
	}
	sort.Slice(resourceIDs, func(i, j int) bool { return resourceIDs[i] < resourceIDs[j] })

	for _, rid := range resourceIDs {
		rid := rid
		worked := state.workedDates[rid]

		streak := longestStreak(days, worked)
		if streak > wt.MaxConsecutiveWorkingDays {
			violations = append(violations, domain.Violation{
				Category:   domain.ViolationConsecutiveDays,
				Severity:   domain.SeverityCritical,
				Scope:      domain.ScopeResource,
				ResourceID: &rid,
				Meta: map[string]any{
					"resourceID": rid,
					"streak":     streak,
					"limit":      wt.MaxConsecutiveWorkingDays,
				},
			})
		}

		required := wt.RequiredConsecutiveDaysOffPerMonth
		if required > 0 && !hasConsecutiveRest(days, worked, required) {
			violations = append(violations, domain.Violation{
				Category:   domain.ViolationInsufficientRest,
				Severity:   domain.SeverityWarning,
				Scope:      domain.ScopeResource,
				ResourceID: &rid,
				Meta: map[string]any{
					"resourceID":  rid,
					"requiredOff": required,
				},
			})
		}
	}

	return violations
}

// longestStreak 返回月内最长的连续工作天数
func longestStreak(days []time.Time, worked map[string]bool) int {
	longest, current := 0, 0
	for _, day := range days {
		if worked[day.Format(domain.DateLayout)] {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// hasConsecutiveRest 判断月内是否存在要求长度的连续休息日
func hasConsecutiveRest(days []time.Time, worked map[string]bool, required int) bool {
	streak := 0
	for _, day := range days {
		if !worked[day.Format(domain.DateLayout)] {
			streak++
			if streak >= required {
				return true
			}
		} else {
			streak = 0
		}
	}
	return false
}
