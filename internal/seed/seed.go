// Package seed 往数据库中插入一套可用的厨房排班演示数据
package seed

import (
	"log/slog"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/repository"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/rules"
)

var demoShifts = []domain.Shift{
	{Code: 1, Description: "Service du matin", StartTime: "06:00", EndTime: "14:30", Hours: 8},
	{Code: 2, Description: "Service du soir", StartTime: "13:30", EndTime: "21:30", Hours: 7.5},
	{Code: 3, Description: "Service coupé", StartTime: "09:00", EndTime: "19:00", Hours: 8.5},
	{Code: 4, Description: "Service week-end", StartTime: "08:00", EndTime: "16:00", Hours: 7.5},
}

func strPtr(s string) *string { return &s }

var demoResources = []domain.Resource{
	{
		Name:                  "Claude Favre",
		Role:                  domain.ResourceRoleCook,
		AvailabilityPercent:   100,
		ContractHoursPerMonth: 180,
		PreferredShiftCodes:   []int32{1},
	},
	{
		Name:                  "Marie Rochat",
		Role:                  domain.ResourceRoleCook,
		AvailabilityPercent:   80,
		ContractHoursPerMonth: 145,
		PreferredShiftCodes:   []int32{2},
		UndesiredShiftCodes:   []int32{1},
	},
	{
		Name:                  "Pierre Dubois",
		Role:                  domain.ResourceRoleReliefCook,
		AvailabilityPercent:   100,
		ContractHoursPerMonth: 180,
	},
	{
		Name:                  "Anne Mercier",
		Role:                  domain.ResourceRoleKitchenAssistant,
		AvailabilityPercent:   100,
		ContractHoursPerMonth: 175,
		Availability: []domain.AvailabilityWindow{
			{Day: "sunday", IsAvailable: false},
		},
	},
	{
		Name:                  "Luc Bovay",
		Role:                  domain.ResourceRoleKitchenAssistant,
		AvailabilityPercent:   60,
		ContractHoursPerMonth: 105,
		UndesiredShiftCodes:   []int32{2},
	},
	{
		Name:                  "Sophie Chappuis",
		Role:                  domain.ResourceRolePotWasher,
		AvailabilityPercent:   100,
		ContractHoursPerMonth: 170,
	},
	{
		Name:                  "Julien Martin",
		Role:                  domain.ResourceRoleApprentice,
		AvailabilityPercent:   100,
		ContractHoursPerMonth: 150,
		Notes:                 strPtr("2ème année d'apprentissage"),
	},
}

// SeedDemoData 插入演示用的班次、人员和默认规则配置，
// 主键冲突说明数据已存在，记录日志后跳过
func SeedDemoData(r *repository.Repository) {
	for i := range demoShifts {
		shift := demoShifts[i]
		if err := r.CreateShift(&shift); err != nil {
			slog.Error("无法插入班次", "code", shift.Code, "error", err)
			continue
		}
	}
	slog.Info("班次插入完成", "count", len(demoShifts))

	for i := range demoResources {
		resource := demoResources[i]
		if err := r.CreateResource(&resource); err != nil {
			slog.Error("无法插入人员", "name", resource.Name, "error", err)
			continue
		}
	}
	slog.Info("人员插入完成", "count", len(demoResources))

	if err := r.UpdateActiveRuleConfig("默认规则", rules.DefaultRules()); err != nil {
		slog.Error("无法插入默认规则配置", "error", err)
		return
	}
	slog.Info("默认规则配置插入完成")
}
