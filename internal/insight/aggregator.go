// Package insight 把规则评估产生的违规按日 / 资源 / ISO 周 / 月四个维度归组。
package insight

import (
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// Aggregate 是纯函数：每条违规散列到它填充的所有维度的桶里
// （同时带有日期和资源的违规会同时进入两个桶），月度桶收纳整月的全部违规，
// schedule 范围的违规只出现在月度桶中。
// 桶内成员保持评估器的输出顺序，桶的严重程度等于成员中的最大值。
func Aggregate(violations []domain.Violation) *domain.Insights {
	insights := &domain.Insights{
		Daily:    make(map[string]*domain.InsightGroup),
		Resource: make(map[int64]*domain.InsightGroup),
		Weekly:   make(map[string]*domain.InsightGroup),
		Monthly:  make(map[string]*domain.InsightGroup),
	}

	for _, violation := range violations {
		if violation.Day != nil {
			mergeDaily(insights.Daily, *violation.Day, violation)
		}
		if violation.ResourceID != nil {
			mergeResource(insights.Resource, *violation.ResourceID, violation)
		}
		if violation.ISOWeek != nil {
			mergeDaily(insights.Weekly, *violation.ISOWeek, violation)
		}
		mergeDaily(insights.Monthly, domain.MonthKey, violation)
	}

	return insights
}

func mergeDaily(bucket map[string]*domain.InsightGroup, key string, violation domain.Violation) {
	group, exists := bucket[key]
	if !exists {
		bucket[key] = &domain.InsightGroup{
			Severity:   violation.Severity,
			Violations: []domain.Violation{violation},
		}
		return
	}
	group.Severity = domain.MaxSeverity(group.Severity, violation.Severity)
	group.Violations = append(group.Violations, violation)
}

func mergeResource(bucket map[int64]*domain.InsightGroup, key int64, violation domain.Violation) {
	group, exists := bucket[key]
	if !exists {
		bucket[key] = &domain.InsightGroup{
			Severity:   violation.Severity,
			Violations: []domain.Violation{violation},
		}
		return
	}
	group.Severity = domain.MaxSeverity(group.Severity, violation.Severity)
	group.Violations = append(group.Violations, violation)
}
