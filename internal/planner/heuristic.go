package planner

import (
	"context"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/rules"
)

// Heuristic 是确定性的启发式生成器：
// 先为每个资源预留规则要求的连续休息窗口，
// 然后逐日先满足各岗位的最低人数，再补足当日日型的最低总人数。
// 相同输入必然产生相同的条目序列。
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

type resourceState struct {
	resource    *domain.Resource
	weeklyDays  map[string]int
	weeklyHours map[string]float64
	consecutive int
	total       int
	forcedRest  map[string]bool
}

func (h *Heuristic) Generate(
	ctx context.Context,
	month string,
	resources []*domain.Resource,
	shifts []*domain.Shift,
	cal *rules.Calendar,
	cfg *rules.RuleConfig,
) ([]*domain.PlanningEntry, error) {
	days, err := rules.MonthDays(month)
	if err != nil {
		return nil, domain.NewDataIntegrityError("无法解析月份 %s: %v", month, err)
	}

	entries := []*domain.PlanningEntry{}
	if len(resources) == 0 || len(shifts) == 0 {
		return entries, nil
	}

	sortedResources := make([]*domain.Resource, len(resources))
	copy(sortedResources, resources)
	sort.Slice(sortedResources, func(i, j int) bool { return sortedResources[i].ID < sortedResources[j].ID })

	sortedShifts := make([]*domain.Shift, len(shifts))
	copy(sortedShifts, shifts)
	sort.Slice(sortedShifts, func(i, j int) bool { return sortedShifts[i].Code < sortedShifts[j].Code })

	states := make([]*resourceState, 0, len(sortedResources))
	for _, resource := range sortedResources {
		states = append(states, &resourceState{
			resource:    resource,
			weeklyDays:  make(map[string]int),
			weeklyHours: make(map[string]float64),
			forcedRest:  make(map[string]bool),
		})
	}

	applyMandatoryRest(states, days, cfg.WorkingTime.RequiredConsecutiveDaysOffPerMonth)

	roleOrder := make([]domain.ResourceRole, 0, len(cfg.Staffing.Composition))
	for role := range cfg.Staffing.Composition {
		roleOrder = append(roleOrder, role)
	}
	sort.Slice(roleOrder, func(i, j int) bool { return roleOrder[i] < roleOrder[j] })

	comment := "AUTO"

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		week := isoWeekLabel(day)
		assignedToday := make(map[int64]bool)
		roleCounts := make(map[domain.ResourceRole]int)

		assign := func(state *resourceState, shift *domain.Shift) {
			code := shift.Code
			entries = append(entries, &domain.PlanningEntry{
				ResourceID: state.resource.ID,
				Date:       day,
				ShiftCode:  &code,
				Comment:    &comment,
			})
			assignedToday[state.resource.ID] = true
			roleCounts[state.resource.Role]++

			state.total++
			state.consecutive++
			state.weeklyDays[week]++
			state.weeklyHours[week] += shift.Hours
		}

		// 先满足各岗位的最低人数
		for _, role := range roleOrder {
			bounds := cfg.Staffing.Composition[role]
			if bounds.Min == nil {
				continue
			}
			for roleCounts[role] < *bounds.Min {
				state, shift := pickCandidate(states, sortedShifts, day, week, assignedToday, &role, cfg)
				if state == nil {
					break
				}
				assign(state, shift)
			}
		}

		// 再补足当日日型的最低总人数，同时不突破岗位上限
		required := cfg.Staffing.MinimumFor(cal.DayType(day))
		for len(assignedToday) < required {
			state, shift := pickCandidateWithinRoleMax(states, sortedShifts, day, week, assignedToday, roleCounts, cfg)
			if state == nil {
				break
			}
			assign(state, shift)
		}

		// 当天没有出勤的资源连续计数清零
		for _, state := range states {
			if !assignedToday[state.resource.ID] {
				state.consecutive = 0
			}
		}
	}

	return entries, nil
}

// applyMandatoryRest 为尚未因缺勤或模板形成足够休息窗口的资源，
// 预留月内第一个可行的连续休息窗口
func applyMandatoryRest(states []*resourceState, days []time.Time, required int) {
	if required <= 1 {
		return
	}

	for _, state := range states {
		if hasNaturalRestBlock(state.resource, days, required) {
			continue
		}
		for i := 0; i+required <= len(days); i++ {
			window := days[i : i+required]
			feasible := true
			for _, day := range window {
				if !state.resource.AvailableOn(day) {
					feasible = false
					break
				}
			}
			if feasible {
				for _, day := range window {
					state.forcedRest[day.Format(domain.DateLayout)] = true
				}
				break
			}
		}
	}
}

func hasNaturalRestBlock(resource *domain.Resource, days []time.Time, required int) bool {
	streak := 0
	for _, day := range days {
		if !resource.AvailableOn(day) {
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

func pickCandidate(
	states []*resourceState,
	shifts []*domain.Shift,
	day time.Time,
	week string,
	assignedToday map[int64]bool,
	role *domain.ResourceRole,
	cfg *rules.RuleConfig,
) (*resourceState, *domain.Shift) {
	type option struct {
		state *resourceState
		shift *domain.Shift
	}

	options := []option{}
	for _, state := range states {
		if assignedToday[state.resource.ID] {
			continue
		}
		if role != nil && state.resource.Role != *role {
			continue
		}
		if !state.resource.AvailableOn(day) {
			continue
		}
		if state.forcedRest[day.Format(domain.DateLayout)] {
			continue
		}
		shift := selectShift(state.resource, shifts, state.total)
		if shift == nil {
			continue
		}
		if !canAssign(state, shift, week, &cfg.WorkingTime) {
			continue
		}
		options = append(options, option{state: state, shift: shift})
	}
	if len(options) == 0 {
		return nil, nil
	}

	sort.SliceStable(options, func(i, j int) bool {
		si, sj := options[i].state, options[j].state
		if si.weeklyDays[week] != sj.weeklyDays[week] {
			return si.weeklyDays[week] < sj.weeklyDays[week]
		}
		if si.weeklyHours[week] != sj.weeklyHours[week] {
			return si.weeklyHours[week] < sj.weeklyHours[week]
		}
		if si.consecutive != sj.consecutive {
			return si.consecutive < sj.consecutive
		}
		pi, pj := rolePriority(si.resource.Role), rolePriority(sj.resource.Role)
		if pi != pj {
			return pi < pj
		}
		if si.total != sj.total {
			return si.total < sj.total
		}
		return si.resource.ID < sj.resource.ID
	})

	return options[0].state, options[0].shift
}

func pickCandidateWithinRoleMax(
	states []*resourceState,
	shifts []*domain.Shift,
	day time.Time,
	week string,
	assignedToday map[int64]bool,
	roleCounts map[domain.ResourceRole]int,
	cfg *rules.RuleConfig,
) (*resourceState, *domain.Shift) {
	filtered := make([]*resourceState, 0, len(states))
	for _, state := range states {
		bounds, configured := cfg.Staffing.Composition[state.resource.Role]
		if configured && bounds.Max != nil && roleCounts[state.resource.Role] >= *bounds.Max {
			continue
		}
		filtered = append(filtered, state)
	}
	return pickCandidate(filtered, shifts, day, week, assignedToday, nil, cfg)
}

// selectShift 在排除被排斥班次后优先偏好班次，按累计出勤次数轮换
func selectShift(resource *domain.Resource, shifts []*domain.Shift, rotation int) *domain.Shift {
	if len(shifts) == 0 {
		return nil
	}

	filtered := []*domain.Shift{}
	preferred := []*domain.Shift{}
	for _, shift := range shifts {
		if resource.DislikesShift(shift.Code) {
			continue
		}
		filtered = append(filtered, shift)
		if resource.PrefersShift(shift.Code) {
			preferred = append(preferred, shift)
		}
	}

	pool := preferred
	if len(pool) == 0 {
		pool = filtered
	}
	if len(pool) == 0 {
		pool = shifts
	}
	return pool[rotation%len(pool)]
}

func canAssign(state *resourceState, shift *domain.Shift, week string, wt *rules.WorkingTimeRules) bool {
	if wt.MaxWorkingDaysPerWeek > 0 && state.weeklyDays[week]+1 > wt.MaxWorkingDaysPerWeek {
		return false
	}
	if wt.MaxHoursPerWeek > 0 && state.weeklyHours[week]+shift.Hours > wt.MaxHoursPerWeek {
		return false
	}
	if wt.MaxConsecutiveWorkingDays > 0 && state.consecutive+1 > wt.MaxConsecutiveWorkingDays {
		return false
	}
	return true
}

func rolePriority(role domain.ResourceRole) int {
	switch role {
	case domain.ResourceRoleCook:
		return 0
	case domain.ResourceRoleReliefCook:
		return 1
	default:
		return 2
	}
}

func isoWeekLabel(day time.Time) string {
	return rules.ISOWeekLabel(day)
}
