package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

func (h *Handler) GetMonthOverview(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")

	overview, err := h.manager.Overview(r.Context(), month)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取月度概览成功", overview)
}

func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")

	var req struct {
		Label string `json:"label"`
	}
	// 请求体允许为空，此时版本标签自动生成
	if r.ContentLength > 0 {
		if err := h.readJSON(r, &req); err != nil {
			h.badRequest(w, r, err)
			return
		}
	}

	payload, err := h.manager.Generate(r.Context(), month, req.Label)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "生成候选排班成功", payload)
}

func (h *Handler) GetAllScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.repository.GetAllScenarios()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 列表附带每个方案最近一次的版本快照，方便前端直接展示统计
	type scenarioListItem struct {
		*domain.Scenario
		LatestVersion *domain.PlanVersion `json:"latestVersion"`
	}

	items := make([]scenarioListItem, 0, len(scenarios))
	for _, scenario := range scenarios {
		latest, err := h.repository.GetLatestVersionByScenarioID(scenario.ID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				h.internalServerError(w, r, err)
				return
			}
			latest = nil
		}
		items = append(items, scenarioListItem{Scenario: scenario, LatestVersion: latest})
	}

	h.successResponse(w, r, "获取方案列表成功", items)
}

func (h *Handler) GetScenarioVersions(w http.ResponseWriter, r *http.Request) {
	scenario := r.Context().Value(ScenarioCtx).(*domain.Scenario)

	versions, err := h.manager.Versions(scenario.ID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取版本历史成功", versions)
}

func (h *Handler) ApplyChange(w http.ResponseWriter, r *http.Request) {
	scenario := r.Context().Value(ScenarioCtx).(*domain.Scenario)

	var req struct {
		Change domain.SuggestedChange `json:"change" validate:"required"`
		Label  string                 `json:"label"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req.Change); err != nil {
		h.badRequest(w, r, err)
		return
	}

	payload, err := h.manager.ApplySuggestion(r.Context(), scenario.ID, &req.Change, req.Label)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "修改应用成功", payload)
}

func (h *Handler) ApproveScenario(w http.ResponseWriter, r *http.Request) {
	scenario := r.Context().Value(ScenarioCtx).(*domain.Scenario)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	payload, err := h.manager.Approve(r.Context(), scenario.ID, myInfo.Username)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "方案发布成功", payload)
}
