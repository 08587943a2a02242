package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// permissiveRules 返回不会触发任何违规的宽松配置，测试逐项收紧
func permissiveRules() *RuleConfig {
	return &RuleConfig{
		WorkingTime: WorkingTimeRules{
			MaxHoursPerWeek:                    1000,
			CriticalHoursPerWeek:               1000,
			MaxWorkingDaysPerWeek:              7,
			CriticalWorkingDaysPerWeek:         7,
			MaxConsecutiveWorkingDays:          31,
			RequiredConsecutiveDaysOffPerMonth: 0,
		},
		Staffing: StaffingRules{},
	}
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	day, err := time.Parse(domain.DateLayout, value)
	require.NoError(t, err)
	return day
}

func testResource(id int64, role domain.ResourceRole) *domain.Resource {
	return &domain.Resource{ID: id, Name: "测试人员", Role: role, AvailabilityPercent: 100, ContractHoursPerMonth: 180}
}

func testShift(code int32, hours float64) *domain.Shift {
	return &domain.Shift{Code: code, Description: "测试班次", Hours: hours}
}

func workEntry(t *testing.T, rid int64, date string, code int32) *domain.PlanningEntry {
	t.Helper()
	return &domain.PlanningEntry{ResourceID: rid, Date: mustDate(t, date), ShiftCode: &code}
}

func filterByCategory(violations []domain.Violation, category domain.ViolationCategory) []domain.Violation {
	filtered := []domain.Violation{}
	for _, v := range violations {
		if v.Category == category {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

func TestEvaluateEmptySchedule(t *testing.T) {
	violations, err := Evaluate(
		"2025-03",
		[]*domain.Resource{testResource(1, domain.ResourceRoleCook)},
		[]*domain.Shift{testShift(1, 8)},
		nil,
		NewCalendar(nil),
		permissiveRules(),
	)
	require.NoError(t, err)

	require.Len(t, violations, 1)
	assert.Equal(t, domain.ViolationEmptySchedule, violations[0].Category)
	assert.Equal(t, domain.SeverityCritical, violations[0].Severity)
	assert.Equal(t, domain.ScopeSchedule, violations[0].Scope)
}

func TestEvaluateUnknownReferences(t *testing.T) {
	resources := []*domain.Resource{testResource(1, domain.ResourceRoleCook)}
	shifts := []*domain.Shift{testShift(1, 8)}

	t.Run("引用不存在的资源", func(t *testing.T) {
		entries := []*domain.PlanningEntry{workEntry(t, 99, "2025-03-01", 1)}
		_, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), permissiveRules())
		var integrityErr *domain.DataIntegrityError
		require.ErrorAs(t, err, &integrityErr)
	})

	t.Run("引用不存在的班次", func(t *testing.T) {
		entries := []*domain.PlanningEntry{workEntry(t, 1, "2025-03-01", 99)}
		_, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), permissiveRules())
		var integrityErr *domain.DataIntegrityError
		require.ErrorAs(t, err, &integrityErr)
	})
}

func TestEvaluateUncoveredDays(t *testing.T) {
	resources := []*domain.Resource{testResource(1, domain.ResourceRoleCook)}
	shifts := []*domain.Shift{testShift(1, 8)}
	entries := []*domain.PlanningEntry{workEntry(t, 1, "2025-03-01", 1)}

	violations, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), permissiveRules())
	require.NoError(t, err)

	// 全月只有 1 号有人值班，剩下 30 天都是 uncovered-day
	require.Len(t, violations, 30)
	for _, v := range violations {
		assert.Equal(t, domain.ViolationUncoveredDay, v.Category)
		assert.Equal(t, domain.SeverityCritical, v.Severity)
	}

	// 输出按日期升序
	assert.Equal(t, "2025-03-02", *violations[0].Day)
	assert.Equal(t, "2025-03-31", *violations[len(violations)-1].Day)
}

func TestEvaluateStaffingShortfall(t *testing.T) {
	cfg := permissiveRules()
	cfg.Staffing.WeekdayMinimum = 3
	cfg.Staffing.WeekendMinimum = 2
	cfg.Staffing.HolidayMinimum = 2
	cfg.Staffing.HardMinimum = 2

	resources := []*domain.Resource{
		testResource(1, domain.ResourceRoleCook),
		testResource(2, domain.ResourceRoleKitchenAssistant),
	}
	shifts := []*domain.Shift{testShift(1, 8)}
	entries := []*domain.PlanningEntry{
		// 2025-03-03 周一：两人值班，低于工作日最低 3 人但不低于硬下限
		workEntry(t, 1, "2025-03-03", 1),
		workEntry(t, 2, "2025-03-03", 1),
		// 2025-03-04 周二：只有一人，低于硬下限
		workEntry(t, 1, "2025-03-04", 1),
	}

	violations, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), cfg)
	require.NoError(t, err)

	shortfalls := filterByCategory(violations, domain.ViolationStaffingShortfall)
	require.Len(t, shortfalls, 2)

	assert.Equal(t, "2025-03-03", *shortfalls[0].Day)
	assert.Equal(t, domain.SeverityWarning, shortfalls[0].Severity)
	assert.Equal(t, 2, shortfalls[0].Meta["assigned"])
	assert.Equal(t, 3, shortfalls[0].Meta["required"])
	assert.Equal(t, "weekday", shortfalls[0].Meta["dayType"])

	assert.Equal(t, "2025-03-04", *shortfalls[1].Day)
	assert.Equal(t, domain.SeverityCritical, shortfalls[1].Severity)
}

func TestEvaluateHolidayMinimum(t *testing.T) {
	cfg := permissiveRules()
	cfg.Staffing.WeekdayMinimum = 2
	cfg.Staffing.HolidayMinimum = 1

	resources := []*domain.Resource{testResource(1, domain.ResourceRoleCook)}
	shifts := []*domain.Shift{testShift(1, 8)}
	entries := []*domain.PlanningEntry{
		workEntry(t, 1, "2025-03-05", 1), // 节假日，1 人即可
		workEntry(t, 1, "2025-03-06", 1), // 工作日，要求 2 人
	}

	cal := NewCalendar([]string{"2025-03-05"})
	violations, err := Evaluate("2025-03", resources, shifts, entries, cal, cfg)
	require.NoError(t, err)

	shortfalls := filterByCategory(violations, domain.ViolationStaffingShortfall)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, "2025-03-06", *shortfalls[0].Day)
}

func TestEvaluateRoleBounds(t *testing.T) {
	cfg := permissiveRules()
	cfg.Staffing.Composition = map[domain.ResourceRole]RoleBounds{
		domain.ResourceRoleCook: {
			Min:         intPtr(1),
			Max:         intPtr(1),
			MinSeverity: domain.SeverityCritical,
			MaxSeverity: domain.SeverityWarning,
		},
	}

	resources := []*domain.Resource{
		testResource(1, domain.ResourceRoleCook),
		testResource(2, domain.ResourceRoleCook),
		testResource(3, domain.ResourceRoleKitchenAssistant),
	}
	shifts := []*domain.Shift{testShift(1, 8)}
	entries := []*domain.PlanningEntry{
		// 2025-03-03：两个厨师，超过上限
		workEntry(t, 1, "2025-03-03", 1),
		workEntry(t, 2, "2025-03-03", 1),
		// 2025-03-04：只有帮厨，厨师缺口
		workEntry(t, 3, "2025-03-04", 1),
	}

	violations, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), cfg)
	require.NoError(t, err)

	exceeded := filterByCategory(violations, domain.ViolationRoleMaxExceeded)
	require.Len(t, exceeded, 1)
	assert.Equal(t, "2025-03-03", *exceeded[0].Day)
	assert.Equal(t, domain.SeverityWarning, exceeded[0].Severity)
	assert.Equal(t, "cook", exceeded[0].Meta["role"])

	shortfall := filterByCategory(violations, domain.ViolationRoleMinShortfall)
	require.Len(t, shortfall, 1)
	assert.Equal(t, "2025-03-04", *shortfall[0].Day)
	assert.Equal(t, domain.SeverityCritical, shortfall[0].Severity)
}

func TestEvaluateAbsenceConflict(t *testing.T) {
	onVacation := testResource(1, domain.ResourceRoleCook)
	onVacation.Absences = []domain.AbsenceWindow{
		{
			StartDate:   mustDate(t, "2025-03-10"),
			EndDate:     mustDate(t, "2025-03-12"),
			AbsenceType: domain.AbsenceVacation,
		},
	}
	noSundays := testResource(2, domain.ResourceRoleKitchenAssistant)
	noSundays.Availability = []domain.AvailabilityWindow{
		{Day: "sunday", IsAvailable: false},
	}

	resources := []*domain.Resource{onVacation, noSundays}
	shifts := []*domain.Shift{testShift(1, 8)}
	entries := []*domain.PlanningEntry{
		workEntry(t, 1, "2025-03-11", 1), // 休假期间被排班
		workEntry(t, 2, "2025-03-09", 1), // 周日，模板不可用
	}

	violations, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), permissiveRules())
	require.NoError(t, err)

	conflicts := filterByCategory(violations, domain.ViolationAbsenceConflict)
	require.Len(t, conflicts, 2)

	// 按日期升序：3 月 9 日的不可用冲突在前
	assert.Equal(t, "2025-03-09", *conflicts[0].Day)
	assert.Equal(t, int64(2), *conflicts[0].ResourceID)
	assert.Equal(t, "unavailable", conflicts[0].Meta["reason"])

	assert.Equal(t, "2025-03-11", *conflicts[1].Day)
	assert.Equal(t, int64(1), *conflicts[1].ResourceID)
	assert.Equal(t, "absence", conflicts[1].Meta["reason"])
	assert.Equal(t, "vacation", conflicts[1].Meta["absenceType"])
	for _, c := range conflicts {
		assert.Equal(t, domain.SeverityCritical, c.Severity)
	}
}

func TestEvaluateAbsenceMarkWinsOverShift(t *testing.T) {
	resource := testResource(1, domain.ResourceRoleCook)
	shifts := []*domain.Shift{testShift(1, 8)}

	// 同时带有班次和缺勤标记的条目按缺勤处理，不产生冲突也不计工时
	absenceType := domain.AbsenceSick
	entry := workEntry(t, 1, "2025-03-03", 1)
	entry.AbsenceType = &absenceType

	violations, err := Evaluate("2025-03", []*domain.Resource{resource}, shifts,
		[]*domain.PlanningEntry{entry}, NewCalendar(nil), permissiveRules())
	require.NoError(t, err)

	assert.Empty(t, filterByCategory(violations, domain.ViolationAbsenceConflict))
	// 该条目不算出勤，当天仍然是 uncovered-day
	uncovered := filterByCategory(violations, domain.ViolationUncoveredDay)
	assert.Len(t, uncovered, 31)
}

func TestEvaluateWeeklyHours(t *testing.T) {
	cfg := permissiveRules()
	cfg.WorkingTime.MaxHoursPerWeek = 45
	cfg.WorkingTime.CriticalHoursPerWeek = 50

	resources := []*domain.Resource{
		testResource(1, domain.ResourceRoleCook),
		testResource(2, domain.ResourceRoleKitchenAssistant),
	}
	shifts := []*domain.Shift{testShift(1, 10)}

	entries := []*domain.PlanningEntry{}
	// 资源 1 在 2025-W10 工作 6 天共 60 小时，超过硬上限
	for day := 3; day <= 8; day++ {
		entries = append(entries, workEntry(t, 1, time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout), 1))
	}
	// 资源 2 工作 5 天共 50 小时，正好在硬上限上，只是 warning
	for day := 3; day <= 7; day++ {
		entries = append(entries, workEntry(t, 2, time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout), 1))
	}

	violations, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), cfg)
	require.NoError(t, err)

	hours := filterByCategory(violations, domain.ViolationHoursPerWeek)
	require.Len(t, hours, 2)

	assert.Equal(t, int64(1), *hours[0].ResourceID)
	assert.Equal(t, domain.SeverityCritical, hours[0].Severity)
	assert.Equal(t, "2025-W10", *hours[0].ISOWeek)
	assert.Equal(t, 60.0, hours[0].Meta["hours"])
	assert.Equal(t, 45.0, hours[0].Meta["limit"])

	assert.Equal(t, int64(2), *hours[1].ResourceID)
	assert.Equal(t, domain.SeverityWarning, hours[1].Severity)
}

func TestEvaluateWeeklyDays(t *testing.T) {
	cfg := permissiveRules()
	cfg.WorkingTime.MaxWorkingDaysPerWeek = 5
	cfg.WorkingTime.CriticalWorkingDaysPerWeek = 6

	resources := []*domain.Resource{testResource(1, domain.ResourceRoleCook)}
	shifts := []*domain.Shift{testShift(1, 1)}

	// 2025-W11 的周一到周日全部出勤
	entries := []*domain.PlanningEntry{}
	for day := 10; day <= 16; day++ {
		entries = append(entries, workEntry(t, 1, time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout), 1))
	}

	violations, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), cfg)
	require.NoError(t, err)

	days := filterByCategory(violations, domain.ViolationDaysPerWeek)
	require.Len(t, days, 1)
	assert.Equal(t, domain.SeverityCritical, days[0].Severity)
	assert.Equal(t, "2025-W11", *days[0].ISOWeek)
	assert.Equal(t, 7, days[0].Meta["days"])
}

func TestEvaluateConsecutiveDaysAndRest(t *testing.T) {
	cfg := permissiveRules()
	cfg.WorkingTime.MaxConsecutiveWorkingDays = 3
	cfg.WorkingTime.RequiredConsecutiveDaysOffPerMonth = 2

	resources := []*domain.Resource{
		testResource(1, domain.ResourceRoleCook),
		testResource(2, domain.ResourceRoleKitchenAssistant),
	}
	shifts := []*domain.Shift{testShift(1, 1)}

	entries := []*domain.PlanningEntry{}
	// 资源 1 连续出勤 6 天
	for day := 3; day <= 8; day++ {
		entries = append(entries, workEntry(t, 1, time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout), 1))
	}
	// 资源 2 隔天出勤，整月找不到连续两天的休息
	for day := 1; day <= 31; day += 2 {
		entries = append(entries, workEntry(t, 2, time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout), 1))
	}

	violations, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), cfg)
	require.NoError(t, err)

	streaks := filterByCategory(violations, domain.ViolationConsecutiveDays)
	require.Len(t, streaks, 1)
	assert.Equal(t, int64(1), *streaks[0].ResourceID)
	assert.Equal(t, domain.SeverityCritical, streaks[0].Severity)
	assert.Equal(t, 6, streaks[0].Meta["streak"])
	assert.Equal(t, 3, streaks[0].Meta["limit"])

	rest := filterByCategory(violations, domain.ViolationInsufficientRest)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(2), *rest[0].ResourceID)
	assert.Equal(t, domain.SeverityWarning, rest[0].Severity)
}

func TestEvaluateDeterministicOutput(t *testing.T) {
	cfg := DefaultRules()
	resources := []*domain.Resource{
		testResource(1, domain.ResourceRoleCook),
		testResource(2, domain.ResourceRoleKitchenAssistant),
	}
	shifts := []*domain.Shift{testShift(1, 8), testShift(2, 7)}
	entries := []*domain.PlanningEntry{
		workEntry(t, 1, "2025-03-03", 1),
		workEntry(t, 2, "2025-03-04", 2),
	}

	first, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), cfg)
	require.NoError(t, err)
	second, err := Evaluate("2025-03", resources, shifts, entries, NewCalendar(nil), cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
