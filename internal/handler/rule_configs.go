package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/rules"
)

func (h *Handler) GetActiveRuleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.repository.GetActiveRuleConfig()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取规则配置成功", cfg)
}

func (h *Handler) UpdateActiveRuleConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string            `json:"name" validate:"required"`
		WorkingTime rules.WorkingTimeRules `json:"workingTime" validate:"required"`
		Staffing    rules.StaffingRules    `json:"staffing" validate:"required"`
		Approval    rules.ApprovalRules    `json:"approval"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	cfg := &rules.RuleConfig{
		WorkingTime: req.WorkingTime,
		Staffing:    req.Staffing,
		Approval:    req.Approval,
	}
	if err := cfg.Validate(); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.UpdateActiveRuleConfig(req.Name, cfg); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "规则配置更新成功", cfg)
}
