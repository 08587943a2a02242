// Package planning 实现排班方案的版本管理器：
// 维护每个月 {无方案, 编制中, 已发布} 的状态机，
// 每次变更都重新运行 评估 → 归组 → 建议 的流水线并追加不可变的版本快照。
package planning

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/config"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/holidays"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/insight"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/planner"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/rules"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/suggest"
)

// Store 是管理器依赖的持久化接口，由 repository.Repository 实现。
// 多步变更（条目 + 版本 + 方案状态）必须在实现内部以单个事务完成。
type Store interface {
	GetAllResources() ([]*domain.Resource, error)
	GetAllShifts() ([]*domain.Shift, error)
	GetActiveRuleConfig() (*rules.RuleConfig, error)
	GetScenarioByID(id int64) (*domain.Scenario, error)
	GetScenarioByMonthAndStatus(month string, status domain.ScenarioStatus) (*domain.Scenario, error)
	CreateScenario(scenario *domain.Scenario) error
	GetEntriesByScenarioID(scenarioID int64) ([]*domain.PlanningEntry, error)
	GetVersionsByScenarioID(scenarioID int64) ([]*domain.PlanVersion, error)
	StoreGeneration(scenario *domain.Scenario, entries []*domain.PlanningEntry, version *domain.PlanVersion) error
	ApplyEntryChange(scenario *domain.Scenario, change *domain.SuggestedChange, version *domain.PlanVersion) error
	ApproveScenario(scenario *domain.Scenario, publishedBy string, version *domain.PlanVersion) error
}

// PhasePayload 是每个命令返回的刷新后的阶段视图
type PhasePayload struct {
	Scenario    *domain.Scenario        `json:"scenario"`
	Entries     []*domain.PlanningEntry `json:"entries"`
	Violations  []domain.Violation      `json:"violations"`
	Insights    *domain.Insights        `json:"insights"`
	Suggestions []domain.Suggestion     `json:"suggestions"`
	Versions    []*domain.PlanVersion   `json:"versions"`
}

type Overview struct {
	Month       string        `json:"month"`
	Preparation *PhasePayload `json:"preparation"`
	Approved    *PhasePayload `json:"approved"`
	Holidays    []string      `json:"holidays"`
}

// ApprovalEvent 在发布成功后投递到消息队列，由通知进程消费
type ApprovalEvent struct {
	Month       string                `json:"month"`
	ScenarioID  int64                 `json:"scenarioID"`
	Label       string                `json:"label"`
	PublishedBy string                `json:"publishedBy"`
	Summary     domain.VersionSummary `json:"summary"`
}

type Manager struct {
	cfg         *config.Config
	store       Store
	generator   planner.Generator
	redisClient *redis.Client // 可为 nil（测试环境）
	mailChannel *amqp.Channel // 可为 nil（测试环境）

	mu            sync.Mutex
	scenarioLocks map[int64]*sync.Mutex
}

func NewManager(cfg *config.Config, store Store, generator planner.Generator, rdb *redis.Client, mailCh *amqp.Channel) *Manager {
	return &Manager{
		cfg:           cfg,
		store:         store,
		generator:     generator,
		redisClient:   rdb,
		mailChannel:   mailCh,
		scenarioLocks: make(map[int64]*sync.Mutex),
	}
}

// lockScenario 保证同一方案的所有写操作串行执行（逻辑上的单写者锁）
func (m *Manager) lockScenario(scenarioID int64) func() {
	m.mu.Lock()
	lock, exists := m.scenarioLocks[scenarioID]
	if !exists {
		lock = &sync.Mutex{}
		m.scenarioLocks[scenarioID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

type masterData struct {
	resources []*domain.Resource
	shifts    []*domain.Shift
	ruleCfg   *rules.RuleConfig
	calendar  *rules.Calendar
	holidays  []string
}

func (m *Manager) loadMasterData(month string) (*masterData, error) {
	resources, err := m.store.GetAllResources()
	if err != nil {
		return nil, err
	}
	shifts, err := m.store.GetAllShifts()
	if err != nil {
		return nil, err
	}
	ruleCfg, err := m.store.GetActiveRuleConfig()
	if err != nil {
		return nil, err
	}

	monthHolidays := holidays.ForMonth(month)
	return &masterData{
		resources: resources,
		shifts:    shifts,
		ruleCfg:   ruleCfg,
		calendar:  rules.NewCalendar(monthHolidays),
		holidays:  monthHolidays,
	}, nil
}

// Generate 为指定月份生成候选排班：
// 不存在编制中方案时先创建一个，存在时用新一轮生成结果覆盖其条目，
// 两种情况都追加新的版本快照，方案保持在编制阶段。
func (m *Manager) Generate(ctx context.Context, month string, label string) (*PhasePayload, error) {
	if _, err := rules.MonthDays(month); err != nil {
		return nil, domain.NewNotFoundError("月份无效: %s", month)
	}

	scenario, err := m.store.GetScenarioByMonthAndStatus(month, domain.ScenarioStatusPreparation)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		scenario = &domain.Scenario{
			Month:  month,
			Name:   "Draft",
			Status: domain.ScenarioStatusPreparation,
		}
		if err := m.store.CreateScenario(scenario); err != nil {
			// 并发的首轮生成会撞上同月唯一索引，输掉的一方复用对方刚创建的方案
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) || pgErr.ConstraintName != "scenarios_month_status_key" {
				return nil, err
			}
			scenario, err = m.store.GetScenarioByMonthAndStatus(month, domain.ScenarioStatusPreparation)
			if err != nil {
				return nil, err
			}
		}
	}

	unlock := m.lockScenario(scenario.ID)
	defer unlock()

	data, err := m.loadMasterData(month)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.Planner.GenerateTimeout)*time.Second)
	defer cancel()

	entries, err := m.generator.Generate(genCtx, month, data.resources, data.shifts, data.calendar, data.ruleCfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewComputeError(err, "生成候选排班超时")
		}
		return nil, err
	}

	violations, err := rules.Evaluate(month, data.resources, data.shifts, entries, data.calendar, data.ruleCfg)
	if err != nil {
		return nil, err
	}

	version := &domain.PlanVersion{
		Label:   label,
		Summary: summarize(entries, violations),
	}
	if err := m.store.StoreGeneration(scenario, entries, version); err != nil {
		return nil, err
	}

	m.invalidateOverview(ctx, month)
	return m.buildPayload(scenario, entries, data, violations)
}

// ApplySuggestion 在编制阶段对单个格子应用一次幂等修改，
// 重新运行流水线并追加版本快照。方案已发布时返回 InvalidStateError。
func (m *Manager) ApplySuggestion(ctx context.Context, scenarioID int64, change *domain.SuggestedChange, label string) (*PhasePayload, error) {
	scenario, err := m.store.GetScenarioByID(scenarioID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("方案 %d 不存在", scenarioID)
		}
		return nil, err
	}
	if scenario.Status != domain.ScenarioStatusPreparation {
		return nil, domain.NewInvalidStateError("方案已发布，条目不允许再修改")
	}
	if !strings.HasPrefix(change.Date, scenario.Month+"-") {
		return nil, domain.NewDataIntegrityError("修改的日期 %s 不在方案月份 %s 内", change.Date, scenario.Month)
	}

	unlock := m.lockScenario(scenario.ID)
	defer unlock()

	data, err := m.loadMasterData(scenario.Month)
	if err != nil {
		return nil, err
	}

	entries, err := m.store.GetEntriesByScenarioID(scenario.ID)
	if err != nil {
		return nil, err
	}

	// 先在内存中应用修改并评估，确认引用完整后才落库
	nextEntries, err := applyChangeInMemory(entries, change, scenario.ID)
	if err != nil {
		return nil, err
	}
	violations, err := rules.Evaluate(scenario.Month, data.resources, data.shifts, nextEntries, data.calendar, data.ruleCfg)
	if err != nil {
		return nil, err
	}

	version := &domain.PlanVersion{
		Label:   label,
		Summary: summarize(nextEntries, violations),
	}
	if err := m.store.ApplyEntryChange(scenario, change, version); err != nil {
		return nil, err
	}

	m.invalidateOverview(ctx, scenario.Month)

	persisted, err := m.store.GetEntriesByScenarioID(scenario.ID)
	if err != nil {
		return nil, err
	}
	return m.buildPayload(scenario, persisted, data, violations)
}

// Approve 发布方案：剩余 critical 违规数必须为零（硬闸门），
// warning 是否阻塞由规则配置决定。发布后条目被冻结，并投递通知事件。
func (m *Manager) Approve(ctx context.Context, scenarioID int64, publishedBy string) (*PhasePayload, error) {
	scenario, err := m.store.GetScenarioByID(scenarioID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("方案 %d 不存在", scenarioID)
		}
		return nil, err
	}
	if scenario.Status != domain.ScenarioStatusPreparation {
		return nil, domain.NewInvalidStateError("只有编制中的方案才能发布")
	}

	unlock := m.lockScenario(scenario.ID)
	defer unlock()

	data, err := m.loadMasterData(scenario.Month)
	if err != nil {
		return nil, err
	}

	entries, err := m.store.GetEntriesByScenarioID(scenario.ID)
	if err != nil {
		return nil, err
	}

	violations, err := rules.Evaluate(scenario.Month, data.resources, data.shifts, entries, data.calendar, data.ruleCfg)
	if err != nil {
		return nil, err
	}

	summary := summarize(entries, violations)
	if summary.CriticalViolations > 0 {
		return nil, domain.NewInvalidStateError("仍有 %d 个严重违规，不允许发布", summary.CriticalViolations)
	}
	if data.ruleCfg.Approval.BlockOnWarnings {
		warnings := 0
		for _, violation := range violations {
			if violation.Severity == domain.SeverityWarning {
				warnings++
			}
		}
		if warnings > 0 {
			return nil, domain.NewInvalidStateError("按当前规则配置，仍有 %d 个警告，不允许发布", warnings)
		}
	}

	version := &domain.PlanVersion{
		Summary: summary,
	}
	if err := m.store.ApproveScenario(scenario, publishedBy, version); err != nil {
		return nil, err
	}

	m.invalidateOverview(ctx, scenario.Month)
	m.publishApprovalEvent(ctx, scenario, version, publishedBy)

	return m.buildPayload(scenario, entries, data, violations)
}

// Overview 返回某个月编制中和已发布两个阶段的完整视图
func (m *Manager) Overview(ctx context.Context, month string) (*Overview, error) {
	if _, err := rules.MonthDays(month); err != nil {
		return nil, domain.NewNotFoundError("月份无效: %s", month)
	}

	if cached := m.cachedOverview(ctx, month); cached != nil {
		return cached, nil
	}

	data, err := m.loadMasterData(month)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		Month:    month,
		Holidays: data.holidays,
	}

	for _, status := range []domain.ScenarioStatus{domain.ScenarioStatusPreparation, domain.ScenarioStatusApproved} {
		scenario, err := m.store.GetScenarioByMonthAndStatus(month, status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}

		entries, err := m.store.GetEntriesByScenarioID(scenario.ID)
		if err != nil {
			return nil, err
		}
		violations, err := rules.Evaluate(month, data.resources, data.shifts, entries, data.calendar, data.ruleCfg)
		if err != nil {
			return nil, err
		}
		payload, err := m.buildPayload(scenario, entries, data, violations)
		if err != nil {
			return nil, err
		}

		if status == domain.ScenarioStatusPreparation {
			overview.Preparation = payload
		} else {
			overview.Approved = payload
		}
	}

	m.cacheOverview(ctx, month, overview)
	return overview, nil
}

// Versions 返回方案的版本历史
func (m *Manager) Versions(scenarioID int64) ([]*domain.PlanVersion, error) {
	if _, err := m.store.GetScenarioByID(scenarioID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("方案 %d 不存在", scenarioID)
		}
		return nil, err
	}
	return m.store.GetVersionsByScenarioID(scenarioID)
}

func (m *Manager) buildPayload(scenario *domain.Scenario, entries []*domain.PlanningEntry, data *masterData, violations []domain.Violation) (*PhasePayload, error) {
	versions, err := m.store.GetVersionsByScenarioID(scenario.ID)
	if err != nil {
		return nil, err
	}

	return &PhasePayload{
		Scenario:    scenario,
		Entries:     entries,
		Violations:  violations,
		Insights:    insight.Aggregate(violations),
		Suggestions: suggest.Synthesize(violations, data.resources, data.shifts, entries),
		Versions:    versions,
	}, nil
}

func summarize(entries []*domain.PlanningEntry, violations []domain.Violation) domain.VersionSummary {
	critical := 0
	for _, violation := range violations {
		if violation.Severity == domain.SeverityCritical {
			critical++
		}
	}
	return domain.VersionSummary{
		Entries:            len(entries),
		Violations:         len(violations),
		CriticalViolations: critical,
	}
}

// applyChangeInMemory 在不触碰数据库的前提下应用修改，
// 语义与 repository.ApplyEntryChange 完全一致，用于落库前的预评估
func applyChangeInMemory(entries []*domain.PlanningEntry, change *domain.SuggestedChange, scenarioID int64) ([]*domain.PlanningEntry, error) {
	date, err := time.Parse(domain.DateLayout, change.Date)
	if err != nil {
		return nil, domain.NewDataIntegrityError("修改的日期格式无效: %s", change.Date)
	}

	next := make([]*domain.PlanningEntry, 0, len(entries)+1)
	var target *domain.PlanningEntry
	for _, entry := range entries {
		if entry.ResourceID == change.ResourceID && entry.DateString() == change.Date {
			copied := *entry
			target = &copied
			continue
		}
		next = append(next, entry)
	}

	switch change.Action {
	case domain.ChangeAssignShift:
		if change.ShiftCode == nil {
			return nil, domain.NewDataIntegrityError("assign_shift 修改缺少班次编号")
		}
		if target == nil {
			target = &domain.PlanningEntry{
				ScenarioID: scenarioID,
				ResourceID: change.ResourceID,
				Date:       date,
			}
		}
		target.ShiftCode = change.ShiftCode
		target.AbsenceType = nil
		next = append(next, target)
	case domain.ChangeSetRestDay:
		absenceType := domain.AbsenceRest
		if change.AbsenceType != nil {
			absenceType = *change.AbsenceType
		}
		if target == nil {
			target = &domain.PlanningEntry{
				ScenarioID: scenarioID,
				ResourceID: change.ResourceID,
				Date:       date,
			}
		}
		target.ShiftCode = nil
		target.AbsenceType = &absenceType
		next = append(next, target)
	case domain.ChangeRemoveAssignment:
		// 格子已空时是空操作，target 直接丢弃
	default:
		return nil, domain.NewDataIntegrityError("未知的修改动作: %s", change.Action)
	}

	return next, nil
}

func (m *Manager) publishApprovalEvent(ctx context.Context, scenario *domain.Scenario, version *domain.PlanVersion, publishedBy string) {
	if m.mailChannel == nil {
		return
	}

	event := ApprovalEvent{
		Month:       scenario.Month,
		ScenarioID:  scenario.ID,
		Label:       version.Label,
		PublishedBy: publishedBy,
		Summary:     version.Summary,
	}
	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("无法序列化发布事件", "error", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	// 通知属于尽力而为，投递失败不回滚已提交的发布
	err = m.mailChannel.PublishWithContext(publishCtx, "", "plan_approved_queue", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		slog.Error("无法投递发布事件", "month", scenario.Month, "error", err)
	}
}

func overviewCacheKey(month string) string {
	return "roster:overview:" + month
}

func (m *Manager) cachedOverview(ctx context.Context, month string) *Overview {
	if m.redisClient == nil {
		return nil
	}

	raw, err := m.redisClient.Get(ctx, overviewCacheKey(month)).Bytes()
	if err != nil {
		return nil
	}

	overview := &Overview{}
	if err := json.Unmarshal(raw, overview); err != nil {
		// 缓存损坏按系统故障记录，随后走重算路径
		slog.Error("月度概览缓存损坏", "month", month, "error", domain.NewComputeError(err, "缓存数据无法解析"))
		return nil
	}
	return overview
}

func (m *Manager) cacheOverview(ctx context.Context, month string, overview *Overview) {
	if m.redisClient == nil {
		return
	}

	raw, err := json.Marshal(overview)
	if err != nil {
		return
	}
	expiration := time.Duration(m.cfg.Redis.CacheExpiration) * time.Second
	if err := m.redisClient.Set(ctx, overviewCacheKey(month), raw, expiration).Err(); err != nil {
		slog.Error("无法写入月度概览缓存", "month", month, "error", err)
	}
}

func (m *Manager) invalidateOverview(ctx context.Context, month string) {
	if m.redisClient == nil {
		return
	}
	if err := m.redisClient.Del(ctx, overviewCacheKey(month)).Err(); err != nil {
		slog.Error("无法失效月度概览缓存", "month", month, "error", err)
	}
}
