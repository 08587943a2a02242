// Package suggest 根据规则评估的违规合成具体的、幂等的修正建议。
package suggest

import (
	"fmt"
	"sort"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// MaxSuggestions 限制单次合成输出的建议数量，
// 超出的违规按严重程度和评估顺序被截断，保证结果仍然可操作
const MaxSuggestions = 20

// Synthesize 是纯函数：对违规列表按 critical > warning > info 排序
// （同级保持评估器的输出顺序），逐条映射为修正建议：
//   - staffing-shortfall / uncovered-day / role-min-shortfall → assign_shift
//   - hours-per-week / days-per-week / consecutive-days 超限 → set_rest_day
//   - absence-conflict → remove_assignment
//
// 建议 ID 由类型和范围标识派生，相同输入必然产生相同的 ID 和顺序。
func Synthesize(
	violations []domain.Violation,
	resources []*domain.Resource,
	shifts []*domain.Shift,
	entries []*domain.PlanningEntry,
) []domain.Suggestion {
	ctx := newSynthesisContext(resources, shifts, entries)

	ordered := make([]domain.Violation, len(violations))
	copy(ordered, violations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Severity.Rank() > ordered[j].Severity.Rank()
	})

	suggestions := []domain.Suggestion{}
	seen := make(map[string]bool)

	for _, violation := range ordered {
		if len(suggestions) >= MaxSuggestions {
			break
		}

		var suggestion *domain.Suggestion
		switch violation.Category {
		case domain.ViolationStaffingShortfall, domain.ViolationUncoveredDay:
			suggestion = ctx.proposeAssignment(violation, nil)
		case domain.ViolationRoleMinShortfall:
			role := domain.ResourceRole(metaString(violation.Meta, "role"))
			suggestion = ctx.proposeAssignment(violation, &role)
		case domain.ViolationHoursPerWeek, domain.ViolationDaysPerWeek:
			suggestion = ctx.proposeWeekRest(violation)
		case domain.ViolationConsecutiveDays:
			suggestion = ctx.proposeStreakRest(violation)
		case domain.ViolationAbsenceConflict:
			suggestion = ctx.proposeRemoval(violation)
		}

		if suggestion == nil || seen[suggestion.ID] {
			continue
		}
		seen[suggestion.ID] = true
		suggestions = append(suggestions, *suggestion)
	}

	return suggestions
}

type synthesisContext struct {
	resources  []*domain.Resource // 已按 ID 排序
	shifts     []*domain.Shift    // 已按编号排序
	shiftHours map[int32]float64
	occupied   map[string]map[int64]bool // date -> resourceID -> 当天格子已被占用
	monthHours map[int64]float64         // 资源本月累计工时，用于负载均衡
	workedDays map[int64][]string        // 资源的出勤日期，升序
	entryByKey map[string]*domain.PlanningEntry
}

func entryKey(resourceID int64, date string) string {
	return fmt.Sprintf("%d:%s", resourceID, date)
}

func newSynthesisContext(
	resources []*domain.Resource,
	shifts []*domain.Shift,
	entries []*domain.PlanningEntry,
) *synthesisContext {
	ctx := &synthesisContext{
		resources:  make([]*domain.Resource, len(resources)),
		shifts:     make([]*domain.Shift, len(shifts)),
		shiftHours: make(map[int32]float64, len(shifts)),
		occupied:   make(map[string]map[int64]bool),
		monthHours: make(map[int64]float64),
		workedDays: make(map[int64][]string),
		entryByKey: make(map[string]*domain.PlanningEntry),
	}

	copy(ctx.resources, resources)
	sort.Slice(ctx.resources, func(i, j int) bool { return ctx.resources[i].ID < ctx.resources[j].ID })

	copy(ctx.shifts, shifts)
	sort.Slice(ctx.shifts, func(i, j int) bool { return ctx.shifts[i].Code < ctx.shifts[j].Code })
	for _, s := range ctx.shifts {
		ctx.shiftHours[s.Code] = s.Hours
	}

	for _, e := range entries {
		ds := e.DateString()
		if ctx.occupied[ds] == nil {
			ctx.occupied[ds] = make(map[int64]bool)
		}
		ctx.occupied[ds][e.ResourceID] = true
		ctx.entryByKey[entryKey(e.ResourceID, ds)] = e

		if e.IsWorking() {
			ctx.monthHours[e.ResourceID] += ctx.shiftHours[*e.ShiftCode]
			ctx.workedDays[e.ResourceID] = append(ctx.workedDays[e.ResourceID], ds)
		}
	}
	for _, days := range ctx.workedDays {
		sort.Strings(days)
	}

	return ctx
}

// pickShift 为资源挑选一个班次：优先偏好班次，其次任何非排斥班次，编号最小者胜出
func (ctx *synthesisContext) pickShift(resource *domain.Resource) *domain.Shift {
	var fallback *domain.Shift
	for _, shift := range ctx.shifts {
		if resource.DislikesShift(shift.Code) {
			continue
		}
		if resource.PrefersShift(shift.Code) {
			return shift
		}
		if fallback == nil {
			fallback = shift
		}
	}
	if fallback != nil {
		return fallback
	}
	if len(ctx.shifts) > 0 {
		return ctx.shifts[0]
	}
	return nil
}

// proposeAssignment 为缺员的日期挑选一个可用且当天未被安排的资源。
// 优先级：偏好班次命中且不在排斥集合，其次本月累计工时最少，最后资源 ID 最小。
func (ctx *synthesisContext) proposeAssignment(violation domain.Violation, role *domain.ResourceRole) *domain.Suggestion {
	if violation.Day == nil {
		return nil
	}
	date := *violation.Day
	day, err := parseDate(date)
	if err != nil {
		return nil
	}

	type candidate struct {
		resource *domain.Resource
		shift    *domain.Shift
		tier     int
	}

	candidates := []candidate{}
	for _, resource := range ctx.resources {
		if role != nil && resource.Role != *role {
			continue
		}
		if ctx.occupied[date][resource.ID] {
			continue
		}
		if !resource.AvailableOn(day) {
			continue
		}
		shift := ctx.pickShift(resource)
		if shift == nil {
			continue
		}
		tier := 1
		if resource.PrefersShift(shift.Code) && !resource.DislikesShift(shift.Code) {
			tier = 0
		}
		candidates = append(candidates, candidate{resource: resource, shift: shift, tier: tier})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].tier != candidates[j].tier {
			return candidates[i].tier < candidates[j].tier
		}
		hi, hj := ctx.monthHours[candidates[i].resource.ID], ctx.monthHours[candidates[j].resource.ID]
		if hi != hj {
			return hi < hj
		}
		return candidates[i].resource.ID < candidates[j].resource.ID
	})

	best := candidates[0]
	id := fmt.Sprintf("assign_shift:%s", date)
	meta := map[string]any{
		"date":       date,
		"resourceID": best.resource.ID,
		"shiftCode":  best.shift.Code,
	}
	if role != nil {
		id = fmt.Sprintf("assign_shift:%s:%s", date, *role)
		meta["role"] = string(*role)
	}

	related := violation.Key()
	shiftCode := best.shift.Code
	return &domain.Suggestion{
		ID:               id,
		Type:             string(domain.ChangeAssignShift),
		Severity:         violation.Severity,
		RelatedViolation: &related,
		Change: &domain.SuggestedChange{
			Action:     domain.ChangeAssignShift,
			ResourceID: best.resource.ID,
			Date:       date,
			ShiftCode:  &shiftCode,
		},
		Meta: meta,
	}
}

// proposeWeekRest 在超限的 ISO 周内为资源挑一天休息，
// 优先选被排斥班次所在的日期，其次非偏好班次，日期最早者胜出
func (ctx *synthesisContext) proposeWeekRest(violation domain.Violation) *domain.Suggestion {
	if violation.ResourceID == nil || violation.ISOWeek == nil {
		return nil
	}
	resourceID := *violation.ResourceID

	candidates := []string{}
	for _, ds := range ctx.workedDays[resourceID] {
		day, err := parseDate(ds)
		if err != nil {
			continue
		}
		if isoWeekLabel(day) == *violation.ISOWeek {
			candidates = append(candidates, ds)
		}
	}

	return ctx.restSuggestion(violation, resourceID, candidates)
}

// proposeStreakRest 找出第一段超限的连续出勤，从超出上限的那天起挑一天休息
func (ctx *synthesisContext) proposeStreakRest(violation domain.Violation) *domain.Suggestion {
	if violation.ResourceID == nil {
		return nil
	}
	resourceID := *violation.ResourceID
	limit := metaInt(violation.Meta, "limit")
	if limit <= 0 {
		return nil
	}

	run := firstExcessRun(ctx.workedDays[resourceID], limit)
	if len(run) == 0 {
		return nil
	}
	return ctx.restSuggestion(violation, resourceID, run)
}

func (ctx *synthesisContext) restSuggestion(violation domain.Violation, resourceID int64, candidates []string) *domain.Suggestion {
	if len(candidates) == 0 {
		return nil
	}

	resource := ctx.findResource(resourceID)
	sort.SliceStable(candidates, func(i, j int) bool {
		ti, tj := ctx.restTier(resource, resourceID, candidates[i]), ctx.restTier(resource, resourceID, candidates[j])
		if ti != tj {
			return ti < tj
		}
		return candidates[i] < candidates[j]
	})

	date := candidates[0]
	related := violation.Key()
	return &domain.Suggestion{
		ID:               fmt.Sprintf("set_rest_day:%d:%s", resourceID, date),
		Type:             string(domain.ChangeSetRestDay),
		Severity:         violation.Severity,
		RelatedViolation: &related,
		Change: &domain.SuggestedChange{
			Action:     domain.ChangeSetRestDay,
			ResourceID: resourceID,
			Date:       date,
		},
		Meta: map[string]any{
			"date":       date,
			"resourceID": resourceID,
		},
	}
}

// restTier 越小表示这天越适合改成休息日
func (ctx *synthesisContext) restTier(resource *domain.Resource, resourceID int64, date string) int {
	entry := ctx.entryByKey[entryKey(resourceID, date)]
	if entry == nil || entry.ShiftCode == nil || resource == nil {
		return 2
	}
	if resource.DislikesShift(*entry.ShiftCode) {
		return 0
	}
	if !resource.PrefersShift(*entry.ShiftCode) {
		return 1
	}
	return 2
}

func (ctx *synthesisContext) proposeRemoval(violation domain.Violation) *domain.Suggestion {
	if violation.Day == nil || violation.ResourceID == nil {
		return nil
	}
	date := *violation.Day
	resourceID := *violation.ResourceID

	related := violation.Key()
	return &domain.Suggestion{
		ID:               fmt.Sprintf("remove_assignment:%d:%s", resourceID, date),
		Type:             string(domain.ChangeRemoveAssignment),
		Severity:         violation.Severity,
		RelatedViolation: &related,
		Change: &domain.SuggestedChange{
			Action:     domain.ChangeRemoveAssignment,
			ResourceID: resourceID,
			Date:       date,
		},
		Meta: map[string]any{
			"date":       date,
			"resourceID": resourceID,
			"reason":     metaString(violation.Meta, "reason"),
		},
	}
}

func (ctx *synthesisContext) findResource(id int64) *domain.Resource {
	for _, resource := range ctx.resources {
		if resource.ID == id {
			return resource
		}
	}
	return nil
}
