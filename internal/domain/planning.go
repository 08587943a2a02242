package domain

import "time"

type ScenarioStatus string

const (
	// ScenarioStatusPreparation 表示方案仍处于编制阶段，条目允许被修改
	ScenarioStatusPreparation ScenarioStatus = "preparation"
	// ScenarioStatusApproved 表示方案已发布，条目被冻结
	ScenarioStatusApproved ScenarioStatus = "approved"
	// ScenarioStatusSuperseded 表示该方案曾被发布，后来被新发布的方案取代
	ScenarioStatusSuperseded ScenarioStatus = "superseded"
)

type Scenario struct {
	ID        int64          `json:"id"`
	Month     string         `json:"month"` // YYYY-MM
	Name      string         `json:"name"`
	Status    ScenarioStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Version   int32          `json:"-"`
}

// PlanningEntry 表示某个资源在某一天的排班条目，同一方案内 (resourceId, date) 唯一。
// 当 ShiftCode 和 AbsenceType 同时存在时，以缺勤为准（见 IsWorking）。
type PlanningEntry struct {
	ID          int64        `json:"id"`
	ScenarioID  int64        `json:"scenarioID"`
	ResourceID  int64        `json:"resourceID"`
	Date        time.Time    `json:"date"`
	ShiftCode   *int32       `json:"shiftCode"`
	AbsenceType *AbsenceType `json:"absenceType"`
	Comment     *string      `json:"comment,omitempty"`
}

// IsWorking 判断该条目是否是一次实际出勤。
// 缺勤标记的优先级高于班次编号：两者同时存在时按缺勤处理，
// 该条目占用当天的格子但贡献 0 工时，也不计入连续工作天数。
func (e *PlanningEntry) IsWorking() bool {
	return e.ShiftCode != nil && e.AbsenceType == nil
}

func (e *PlanningEntry) DateString() string {
	return e.Date.Format(DateLayout)
}

// VersionSummary 是版本创建时刻的不可变统计快照
type VersionSummary struct {
	Entries            int `json:"entries"`
	Violations         int `json:"violations"`
	CriticalViolations int `json:"criticalViolations"`
}

// PlanVersion 是只增不改的版本记录，创建后任何字段都不允许变更
type PlanVersion struct {
	ID          int64          `json:"id"`
	ScenarioID  int64          `json:"scenarioID"`
	Label       string         `json:"label"`
	Summary     VersionSummary `json:"summary"`
	PublishedAt *time.Time     `json:"publishedAt"`
	PublishedBy *string        `json:"publishedBy"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// SuggestedChange 的动作类型
type ChangeAction string

const (
	ChangeAssignShift      ChangeAction = "assign_shift"
	ChangeSetRestDay       ChangeAction = "set_rest_day"
	ChangeRemoveAssignment ChangeAction = "remove_assignment"
)

// SuggestedChange 是对单个排班条目的一次幂等修改：
//   - assign_shift 覆盖 (resource, date) 上已有的条目
//   - set_rest_day 将该格子改写为休息日
//   - remove_assignment 删除该格子上的班次，格子已空时为空操作
type SuggestedChange struct {
	Action      ChangeAction `json:"action" validate:"required,oneof=assign_shift set_rest_day remove_assignment"`
	ResourceID  int64        `json:"resourceID" validate:"required"`
	Date        string       `json:"date" validate:"required"` // YYYY-MM-DD
	ShiftCode   *int32       `json:"shiftCode,omitempty"`
	AbsenceType *AbsenceType `json:"absenceType,omitempty"`
}

type Suggestion struct {
	ID               string           `json:"id"`
	Type             string           `json:"type"`
	Severity         Severity         `json:"severity"`
	RelatedViolation *string          `json:"relatedViolation,omitempty"`
	Change           *SuggestedChange `json:"change,omitempty"`
	Meta             map[string]any   `json:"meta"`
}
