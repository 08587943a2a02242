package domain

import (
	"time"
)

// DateLayout 是整个核心中日期（不含时间）的统一格式
const DateLayout = "2006-01-02"

type ResourceRole string

const (
	ResourceRoleCook             ResourceRole = "cook"
	ResourceRoleReliefCook       ResourceRole = "relief_cook"
	ResourceRoleKitchenAssistant ResourceRole = "kitchen_assistant"
	ResourceRolePotWasher        ResourceRole = "pot_washer"
	ResourceRoleApprentice       ResourceRole = "apprentice"
)

type AbsenceType string

const (
	AbsenceVacation AbsenceType = "vacation"
	AbsenceSick     AbsenceType = "sick"
	AbsenceTraining AbsenceType = "training"
	AbsenceRest     AbsenceType = "rest"
	AbsenceOther    AbsenceType = "other"
)

// AvailabilityWindow 表示某个星期几的可用性，时间窗口可选
type AvailabilityWindow struct {
	Day         string  `json:"day"` // monday ... sunday
	IsAvailable bool    `json:"isAvailable"`
	StartTime   *string `json:"startTime,omitempty"`
	EndTime     *string `json:"endTime,omitempty"`
}

// AbsenceWindow 表示一个闭区间的缺勤时间段，同一资源的缺勤时间段之间互不重叠
type AbsenceWindow struct {
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	AbsenceType AbsenceType `json:"absenceType"`
	Comment     *string     `json:"comment,omitempty"`
}

// Contains 判断某一天是否落在缺勤时间段内（闭区间）
func (w *AbsenceWindow) Contains(day time.Time) bool {
	d := day.Format(DateLayout)
	return w.StartDate.Format(DateLayout) <= d && d <= w.EndDate.Format(DateLayout)
}

type Resource struct {
	ID                    int64                `json:"id"`
	Name                  string               `json:"name"`
	Role                  ResourceRole         `json:"role"`
	AvailabilityPercent   int32                `json:"availabilityPercent"`
	ContractHoursPerMonth float64              `json:"contractHoursPerMonth"`
	Availability          []AvailabilityWindow `json:"availability"`
	Absences              []AbsenceWindow      `json:"absences"`
	PreferredShiftCodes   []int32              `json:"preferredShiftCodes"`
	UndesiredShiftCodes   []int32              `json:"undesiredShiftCodes"`
	Notes                 *string              `json:"notes,omitempty"`
	CreatedAt             time.Time            `json:"createdAt"`
	Version               int32                `json:"-"`
}

var weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// AbsenceOn 返回覆盖指定日期的缺勤时间段，不存在时返回 nil
func (r *Resource) AbsenceOn(day time.Time) *AbsenceWindow {
	for i := range r.Absences {
		if r.Absences[i].Contains(day) {
			return &r.Absences[i]
		}
	}
	return nil
}

// AvailableOn 依据每周模板判断资源在指定日期是否可用，未配置模板时默认可用
func (r *Resource) AvailableOn(day time.Time) bool {
	if r.AbsenceOn(day) != nil {
		return false
	}

	weekday := weekdayNames[int(day.Weekday())]
	for _, window := range r.Availability {
		if window.Day == weekday {
			return window.IsAvailable
		}
	}
	return true
}

func (r *Resource) PrefersShift(code int32) bool {
	for _, c := range r.PreferredShiftCodes {
		if c == code {
			return true
		}
	}
	return false
}

func (r *Resource) DislikesShift(code int32) bool {
	for _, c := range r.UndesiredShiftCodes {
		if c == code {
			return true
		}
	}
	return false
}
