// Package planner 实现候选排班的生成器。
// 生成器只负责给出初始的候选条目，规则评估、归组和修正建议在流水线的后续阶段完成。
package planner

import (
	"context"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/rules"
)

// Generator 是排班方案管理器所依赖的生成器接口，
// 如果外部接入耗时较长的优化引擎，应通过 ctx 支持取消
type Generator interface {
	Generate(
		ctx context.Context,
		month string,
		resources []*domain.Resource,
		shifts []*domain.Shift,
		cal *rules.Calendar,
		cfg *rules.RuleConfig,
	) ([]*domain.PlanningEntry, error)
}
