package planning

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/config"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/planner"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/rules"
)

// fakeStore 是 Store 的内存实现，变更语义与 repository 保持一致：
// 条目、版本和方案状态的多步变更在一次调用里整体生效。
type fakeStore struct {
	resources []*domain.Resource
	shifts    []*domain.Shift
	ruleCfg   *rules.RuleConfig

	scenarios map[int64]*domain.Scenario
	entries   map[int64][]*domain.PlanningEntry
	versions  map[int64][]*domain.PlanVersion

	nextScenarioID int64
	nextEntryID    int64
	nextVersionID  int64
}

func newFakeStore(ruleCfg *rules.RuleConfig, resources []*domain.Resource, shifts []*domain.Shift) *fakeStore {
	return &fakeStore{
		resources: resources,
		shifts:    shifts,
		ruleCfg:   ruleCfg,
		scenarios: make(map[int64]*domain.Scenario),
		entries:   make(map[int64][]*domain.PlanningEntry),
		versions:  make(map[int64][]*domain.PlanVersion),
	}
}

func (f *fakeStore) GetAllResources() ([]*domain.Resource, error) { return f.resources, nil }
func (f *fakeStore) GetAllShifts() ([]*domain.Shift, error)       { return f.shifts, nil }
func (f *fakeStore) GetActiveRuleConfig() (*rules.RuleConfig, error) {
	return f.ruleCfg, nil
}

func (f *fakeStore) GetScenarioByID(id int64) (*domain.Scenario, error) {
	scenario, exists := f.scenarios[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return scenario, nil
}

func (f *fakeStore) GetScenarioByMonthAndStatus(month string, status domain.ScenarioStatus) (*domain.Scenario, error) {
	for id := int64(1); id <= f.nextScenarioID; id++ {
		scenario, exists := f.scenarios[id]
		if exists && scenario.Month == month && scenario.Status == status {
			return scenario, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) CreateScenario(scenario *domain.Scenario) error {
	f.nextScenarioID++
	scenario.ID = f.nextScenarioID
	scenario.CreatedAt = time.Now()
	scenario.UpdatedAt = scenario.CreatedAt
	scenario.Version = 1
	f.scenarios[scenario.ID] = scenario
	return nil
}

func (f *fakeStore) GetEntriesByScenarioID(scenarioID int64) ([]*domain.PlanningEntry, error) {
	return f.entries[scenarioID], nil
}

// GetVersionsByScenarioID 按新到旧返回，与仓储层的排序一致
func (f *fakeStore) GetVersionsByScenarioID(scenarioID int64) ([]*domain.PlanVersion, error) {
	stored := f.versions[scenarioID]
	reversed := make([]*domain.PlanVersion, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		reversed = append(reversed, stored[i])
	}
	return reversed, nil
}

func (f *fakeStore) appendVersion(scenarioID int64, version *domain.PlanVersion) {
	version.ScenarioID = scenarioID
	if version.Label == "" {
		version.Label = fmt.Sprintf("v%d", len(f.versions[scenarioID])+1)
	}
	f.nextVersionID++
	version.ID = f.nextVersionID
	version.CreatedAt = time.Now()
	f.versions[scenarioID] = append(f.versions[scenarioID], version)
}

func (f *fakeStore) StoreGeneration(scenario *domain.Scenario, entries []*domain.PlanningEntry, version *domain.PlanVersion) error {
	for _, entry := range entries {
		entry.ScenarioID = scenario.ID
		f.nextEntryID++
		entry.ID = f.nextEntryID
	}
	f.entries[scenario.ID] = entries
	f.appendVersion(scenario.ID, version)
	scenario.UpdatedAt = time.Now()
	scenario.Version++
	return nil
}

func (f *fakeStore) ApplyEntryChange(scenario *domain.Scenario, change *domain.SuggestedChange, version *domain.PlanVersion) error {
	next, err := applyChangeInMemory(f.entries[scenario.ID], change, scenario.ID)
	if err != nil {
		return err
	}
	f.entries[scenario.ID] = next
	f.appendVersion(scenario.ID, version)
	scenario.UpdatedAt = time.Now()
	scenario.Version++
	return nil
}

func (f *fakeStore) ApproveScenario(scenario *domain.Scenario, publishedBy string, version *domain.PlanVersion) error {
	for _, other := range f.scenarios {
		if other.ID != scenario.ID && other.Month == scenario.Month && other.Status == domain.ScenarioStatusApproved {
			other.Status = domain.ScenarioStatusSuperseded
		}
	}
	scenario.Status = domain.ScenarioStatusApproved
	scenario.UpdatedAt = time.Now()
	scenario.Version++

	now := time.Now()
	version.PublishedAt = &now
	version.PublishedBy = &publishedBy
	f.appendVersion(scenario.ID, version)
	return nil
}

// relaxedRules 的限制宽松到生成结果不会产生任何违规
func relaxedRules() *rules.RuleConfig {
	return &rules.RuleConfig{
		WorkingTime: rules.WorkingTimeRules{
			MaxHoursPerWeek:            100,
			CriticalHoursPerWeek:       100,
			MaxWorkingDaysPerWeek:      7,
			CriticalWorkingDaysPerWeek: 7,
			MaxConsecutiveWorkingDays:  31,
		},
		Staffing: rules.StaffingRules{
			WeekdayMinimum: 1,
			WeekendMinimum: 1,
			HolidayMinimum: 1,
			HardMinimum:    1,
		},
	}
}

func testManager(store Store, generator planner.Generator) *Manager {
	cfg := &config.Config{}
	cfg.Planner.GenerateTimeout = 5
	return NewManager(cfg, store, generator, nil, nil)
}

func testResource(id int64, role domain.ResourceRole) *domain.Resource {
	return &domain.Resource{ID: id, Name: "测试人员", Role: role, AvailabilityPercent: 100, ContractHoursPerMonth: 180}
}

func defaultStore(ruleCfg *rules.RuleConfig) *fakeStore {
	return newFakeStore(ruleCfg,
		[]*domain.Resource{
			testResource(1, domain.ResourceRoleCook),
			testResource(2, domain.ResourceRoleKitchenAssistant),
		},
		[]*domain.Shift{{Code: 1, Hours: 8}},
	)
}

func seedScenario(store *fakeStore, month string, status domain.ScenarioStatus) *domain.Scenario {
	scenario := &domain.Scenario{Month: month, Name: "Draft", Status: status}
	_ = store.CreateScenario(scenario)
	return scenario
}

func workEntry(store *fakeStore, scenarioID int64, resourceID int64, date string, code int32) {
	day, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	store.nextEntryID++
	store.entries[scenarioID] = append(store.entries[scenarioID], &domain.PlanningEntry{
		ID:         store.nextEntryID,
		ScenarioID: scenarioID,
		ResourceID: resourceID,
		Date:       day,
		ShiftCode:  &code,
	})
}

func TestGenerateCreatesScenarioAndVersion(t *testing.T) {
	store := defaultStore(relaxedRules())
	manager := testManager(store, planner.NewHeuristic())

	payload, err := manager.Generate(context.Background(), "2025-03", "")
	require.NoError(t, err)

	assert.Equal(t, "2025-03", payload.Scenario.Month)
	assert.Equal(t, domain.ScenarioStatusPreparation, payload.Scenario.Status)
	assert.NotEmpty(t, payload.Entries)
	assert.Empty(t, payload.Violations)

	require.Len(t, payload.Versions, 1)
	assert.Equal(t, "v1", payload.Versions[0].Label)
	assert.Equal(t, len(payload.Entries), payload.Versions[0].Summary.Entries)
	assert.Zero(t, payload.Versions[0].Summary.CriticalViolations)
}

func TestGenerateReusesPreparationScenario(t *testing.T) {
	store := defaultStore(relaxedRules())
	manager := testManager(store, planner.NewHeuristic())

	first, err := manager.Generate(context.Background(), "2025-03", "")
	require.NoError(t, err)
	second, err := manager.Generate(context.Background(), "2025-03", "第二轮")
	require.NoError(t, err)

	assert.Equal(t, first.Scenario.ID, second.Scenario.ID)
	require.Len(t, second.Versions, 2)
	// 版本按新到旧排列
	assert.Equal(t, "第二轮", second.Versions[0].Label)
	assert.Equal(t, "v1", second.Versions[1].Label)
}

// racingStore 模拟并发的首轮生成：本方的插入撞上同月唯一索引，
// 而对方创建的方案已经可见
type racingStore struct {
	*fakeStore
}

func (s *racingStore) CreateScenario(scenario *domain.Scenario) error {
	winner := &domain.Scenario{Month: scenario.Month, Name: "Draft", Status: domain.ScenarioStatusPreparation}
	_ = s.fakeStore.CreateScenario(winner)
	return &pgconn.PgError{Code: "23505", ConstraintName: "scenarios_month_status_key"}
}

func TestGenerateConcurrentFirstRound(t *testing.T) {
	store := &racingStore{fakeStore: defaultStore(relaxedRules())}
	manager := testManager(store, planner.NewHeuristic())

	payload, err := manager.Generate(context.Background(), "2025-03", "")
	require.NoError(t, err)

	// 输掉插入的一方必须复用对方的方案，而不是把约束冲突当系统故障上抛
	assert.Len(t, store.scenarios, 1)
	assert.Equal(t, store.scenarios[1].ID, payload.Scenario.ID)
	assert.NotEmpty(t, payload.Entries)
}

func TestGenerateInvalidMonth(t *testing.T) {
	manager := testManager(defaultStore(relaxedRules()), planner.NewHeuristic())

	_, err := manager.Generate(context.Background(), "2025-13", "")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// stalledGenerator 模拟一直不返回的外部优化引擎
type stalledGenerator struct{}

func (g *stalledGenerator) Generate(
	ctx context.Context,
	month string,
	resources []*domain.Resource,
	shifts []*domain.Shift,
	cal *rules.Calendar,
	cfg *rules.RuleConfig,
) ([]*domain.PlanningEntry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGenerateTimeout(t *testing.T) {
	store := defaultStore(relaxedRules())
	cfg := &config.Config{}
	manager := NewManager(cfg, store, &stalledGenerator{}, nil, nil)

	_, err := manager.Generate(context.Background(), "2025-03", "")
	var computeErr *domain.ComputeError
	require.ErrorAs(t, err, &computeErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestApplySuggestionUnknownScenario(t *testing.T) {
	manager := testManager(defaultStore(relaxedRules()), planner.NewHeuristic())

	_, err := manager.ApplySuggestion(context.Background(), 42, &domain.SuggestedChange{
		Action:     domain.ChangeAssignShift,
		ResourceID: 1,
		Date:       "2025-03-01",
	}, "")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestApplySuggestionFrozenScenario(t *testing.T) {
	store := defaultStore(relaxedRules())
	scenario := seedScenario(store, "2025-03", domain.ScenarioStatusApproved)
	manager := testManager(store, planner.NewHeuristic())

	code := int32(1)
	_, err := manager.ApplySuggestion(context.Background(), scenario.ID, &domain.SuggestedChange{
		Action:     domain.ChangeAssignShift,
		ResourceID: 1,
		Date:       "2025-03-01",
		ShiftCode:  &code,
	}, "")
	var invalidState *domain.InvalidStateError
	assert.ErrorAs(t, err, &invalidState)
}

func TestApplySuggestionDateOutsideMonth(t *testing.T) {
	store := defaultStore(relaxedRules())
	scenario := seedScenario(store, "2025-03", domain.ScenarioStatusPreparation)
	manager := testManager(store, planner.NewHeuristic())

	code := int32(1)
	_, err := manager.ApplySuggestion(context.Background(), scenario.ID, &domain.SuggestedChange{
		Action:     domain.ChangeAssignShift,
		ResourceID: 1,
		Date:       "2025-04-01",
		ShiftCode:  &code,
	}, "")
	var integrityErr *domain.DataIntegrityError
	assert.ErrorAs(t, err, &integrityErr)
}

func TestApplySuggestionUnknownShiftNotPersisted(t *testing.T) {
	store := defaultStore(relaxedRules())
	scenario := seedScenario(store, "2025-03", domain.ScenarioStatusPreparation)
	workEntry(store, scenario.ID, 1, "2025-03-01", 1)
	manager := testManager(store, planner.NewHeuristic())

	// 落库前的预评估应拦住引用不存在班次的修改
	code := int32(99)
	_, err := manager.ApplySuggestion(context.Background(), scenario.ID, &domain.SuggestedChange{
		Action:     domain.ChangeAssignShift,
		ResourceID: 1,
		Date:       "2025-03-02",
		ShiftCode:  &code,
	}, "")
	var integrityErr *domain.DataIntegrityError
	require.ErrorAs(t, err, &integrityErr)

	assert.Len(t, store.entries[scenario.ID], 1)
	assert.Empty(t, store.versions[scenario.ID])
}

func TestApplySuggestionIdempotent(t *testing.T) {
	store := defaultStore(relaxedRules())
	scenario := seedScenario(store, "2025-03", domain.ScenarioStatusPreparation)
	workEntry(store, scenario.ID, 1, "2025-03-01", 1)
	manager := testManager(store, planner.NewHeuristic())

	change := &domain.SuggestedChange{
		Action:     domain.ChangeSetRestDay,
		ResourceID: 1,
		Date:       "2025-03-01",
	}

	first, err := manager.ApplySuggestion(context.Background(), scenario.ID, change, "")
	require.NoError(t, err)
	second, err := manager.ApplySuggestion(context.Background(), scenario.ID, change, "")
	require.NoError(t, err)

	// 重复应用同一修改不改变条目，只追加版本
	require.Len(t, second.Entries, len(first.Entries))
	require.Len(t, second.Entries, 1)
	assert.Nil(t, second.Entries[0].ShiftCode)
	require.NotNil(t, second.Entries[0].AbsenceType)
	assert.Equal(t, domain.AbsenceRest, *second.Entries[0].AbsenceType)
	assert.Len(t, second.Versions, 2)
}

func TestApplyChangeInMemory(t *testing.T) {
	day, err := time.Parse(domain.DateLayout, "2025-03-01")
	require.NoError(t, err)
	code := int32(1)
	existing := []*domain.PlanningEntry{
		{ID: 1, ScenarioID: 7, ResourceID: 1, Date: day, ShiftCode: &code},
	}

	t.Run("assign_shift 缺少班次编号", func(t *testing.T) {
		_, err := applyChangeInMemory(existing, &domain.SuggestedChange{
			Action:     domain.ChangeAssignShift,
			ResourceID: 1,
			Date:       "2025-03-01",
		}, 7)
		var integrityErr *domain.DataIntegrityError
		assert.ErrorAs(t, err, &integrityErr)
	})

	t.Run("set_rest_day 默认休息类型", func(t *testing.T) {
		next, err := applyChangeInMemory(existing, &domain.SuggestedChange{
			Action:     domain.ChangeSetRestDay,
			ResourceID: 1,
			Date:       "2025-03-01",
		}, 7)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Nil(t, next[0].ShiftCode)
		assert.Equal(t, domain.AbsenceRest, *next[0].AbsenceType)
	})

	t.Run("remove_assignment 空格子为空操作", func(t *testing.T) {
		next, err := applyChangeInMemory(existing, &domain.SuggestedChange{
			Action:     domain.ChangeRemoveAssignment,
			ResourceID: 2,
			Date:       "2025-03-01",
		}, 7)
		require.NoError(t, err)
		assert.Len(t, next, 1)
	})

	t.Run("未知动作", func(t *testing.T) {
		_, err := applyChangeInMemory(existing, &domain.SuggestedChange{
			Action:     domain.ChangeAction("swap"),
			ResourceID: 1,
			Date:       "2025-03-01",
		}, 7)
		var integrityErr *domain.DataIntegrityError
		assert.ErrorAs(t, err, &integrityErr)
	})
}

func TestApproveBlockedByCriticalViolations(t *testing.T) {
	store := defaultStore(relaxedRules())
	// 空方案必然带有 empty-schedule 的 critical 违规
	scenario := seedScenario(store, "2025-03", domain.ScenarioStatusPreparation)
	manager := testManager(store, planner.NewHeuristic())

	_, err := manager.Approve(context.Background(), scenario.ID, "admin")
	var invalidState *domain.InvalidStateError
	assert.ErrorAs(t, err, &invalidState)
	assert.Equal(t, domain.ScenarioStatusPreparation, scenario.Status)
}

func TestApproveSuccess(t *testing.T) {
	store := defaultStore(relaxedRules())
	manager := testManager(store, planner.NewHeuristic())

	generated, err := manager.Generate(context.Background(), "2025-03", "")
	require.NoError(t, err)

	// 同月之前发布的方案应被取代
	previous := seedScenario(store, "2025-03", domain.ScenarioStatusApproved)

	payload, err := manager.Approve(context.Background(), generated.Scenario.ID, "admin")
	require.NoError(t, err)

	assert.Equal(t, domain.ScenarioStatusApproved, payload.Scenario.Status)
	assert.Equal(t, domain.ScenarioStatusSuperseded, previous.Status)

	require.Len(t, payload.Versions, 2)
	published := payload.Versions[0]
	require.NotNil(t, published.PublishedBy)
	assert.Equal(t, "admin", *published.PublishedBy)
	assert.NotNil(t, published.PublishedAt)
}

func TestApproveNonPreparationScenario(t *testing.T) {
	store := defaultStore(relaxedRules())
	scenario := seedScenario(store, "2025-03", domain.ScenarioStatusSuperseded)
	manager := testManager(store, planner.NewHeuristic())

	_, err := manager.Approve(context.Background(), scenario.ID, "admin")
	var invalidState *domain.InvalidStateError
	assert.ErrorAs(t, err, &invalidState)
}

func TestApproveBlockOnWarnings(t *testing.T) {
	ruleCfg := relaxedRules()
	// 软上限 50 小时会被满月出勤触发 warning，硬上限保持宽松
	ruleCfg.WorkingTime.MaxHoursPerWeek = 50
	ruleCfg.WorkingTime.CriticalHoursPerWeek = 1000
	ruleCfg.Approval.BlockOnWarnings = true

	store := defaultStore(ruleCfg)
	scenario := seedScenario(store, "2025-03", domain.ScenarioStatusPreparation)
	days, err := rules.MonthDays("2025-03")
	require.NoError(t, err)
	for _, day := range days {
		workEntry(store, scenario.ID, 1, day.Format(domain.DateLayout), 1)
		workEntry(store, scenario.ID, 2, day.Format(domain.DateLayout), 1)
	}
	manager := testManager(store, planner.NewHeuristic())

	_, err = manager.Approve(context.Background(), scenario.ID, "admin")
	var invalidState *domain.InvalidStateError
	require.ErrorAs(t, err, &invalidState)

	ruleCfg.Approval.BlockOnWarnings = false
	payload, err := manager.Approve(context.Background(), scenario.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.ScenarioStatusApproved, payload.Scenario.Status)
}

func TestOverview(t *testing.T) {
	store := defaultStore(relaxedRules())
	seedScenario(store, "2025-08", domain.ScenarioStatusPreparation)
	manager := testManager(store, planner.NewHeuristic())

	overview, err := manager.Overview(context.Background(), "2025-08")
	require.NoError(t, err)

	assert.Equal(t, "2025-08", overview.Month)
	require.NotNil(t, overview.Preparation)
	assert.Nil(t, overview.Approved)
	assert.Contains(t, overview.Holidays, "2025-08-01")

	// 空方案的视图仍带有完整的评估结果
	assert.NotEmpty(t, overview.Preparation.Violations)
	assert.NotNil(t, overview.Preparation.Insights)
}

func TestOverviewInvalidMonth(t *testing.T) {
	manager := testManager(defaultStore(relaxedRules()), planner.NewHeuristic())

	_, err := manager.Overview(context.Background(), "202508")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestVersions(t *testing.T) {
	store := defaultStore(relaxedRules())
	scenario := seedScenario(store, "2025-03", domain.ScenarioStatusPreparation)
	store.appendVersion(scenario.ID, &domain.PlanVersion{Summary: domain.VersionSummary{}})
	store.appendVersion(scenario.ID, &domain.PlanVersion{Summary: domain.VersionSummary{}})
	manager := testManager(store, planner.NewHeuristic())

	versions, err := manager.Versions(scenario.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[0].Label)
	assert.Equal(t, "v1", versions[1].Label)
}

func TestVersionsUnknownScenario(t *testing.T) {
	manager := testManager(defaultStore(relaxedRules()), planner.NewHeuristic())

	_, err := manager.Versions(404)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
