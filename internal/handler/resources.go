package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

func (h *Handler) GetAllResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.repository.GetAllResources()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取人员列表成功", resources)
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	resource := r.Context().Value(ResourceCtx).(*domain.Resource)
	h.successResponse(w, r, "获取人员信息成功", resource)
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                  string                      `json:"name" validate:"required"`
		Role                  string                      `json:"role" validate:"required,oneof=cook relief_cook kitchen_assistant pot_washer apprentice"`
		AvailabilityPercent   int32                       `json:"availabilityPercent" validate:"required,min=1,max=100"`
		ContractHoursPerMonth float64                     `json:"contractHoursPerMonth" validate:"required,gt=0"`
		Availability          []domain.AvailabilityWindow `json:"availability"`
		Absences              []domain.AbsenceWindow      `json:"absences"`
		PreferredShiftCodes   []int32                     `json:"preferredShiftCodes"`
		UndesiredShiftCodes   []int32                     `json:"undesiredShiftCodes"`
		Notes                 *string                     `json:"notes"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	resource := &domain.Resource{
		Name:                  req.Name,
		Role:                  domain.ResourceRole(req.Role),
		AvailabilityPercent:   req.AvailabilityPercent,
		ContractHoursPerMonth: req.ContractHoursPerMonth,
		Availability:          req.Availability,
		Absences:              req.Absences,
		PreferredShiftCodes:   req.PreferredShiftCodes,
		UndesiredShiftCodes:   req.UndesiredShiftCodes,
		Notes:                 req.Notes,
	}

	if err := h.repository.CreateResource(resource); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "人员创建成功", resource)
}

func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	resource := r.Context().Value(ResourceCtx).(*domain.Resource)

	var req struct {
		Name                  *string                      `json:"name"`
		Role                  *string                      `json:"role" validate:"omitempty,oneof=cook relief_cook kitchen_assistant pot_washer apprentice"`
		AvailabilityPercent   *int32                       `json:"availabilityPercent" validate:"omitempty,min=1,max=100"`
		ContractHoursPerMonth *float64                     `json:"contractHoursPerMonth" validate:"omitempty,gt=0"`
		Availability          *[]domain.AvailabilityWindow `json:"availability"`
		Absences              *[]domain.AbsenceWindow      `json:"absences"`
		PreferredShiftCodes   *[]int32                     `json:"preferredShiftCodes"`
		UndesiredShiftCodes   *[]int32                     `json:"undesiredShiftCodes"`
		Notes                 *string                      `json:"notes"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Name != nil {
		resource.Name = *req.Name
	}
	if req.Role != nil {
		resource.Role = domain.ResourceRole(*req.Role)
	}
	if req.AvailabilityPercent != nil {
		resource.AvailabilityPercent = *req.AvailabilityPercent
	}
	if req.ContractHoursPerMonth != nil {
		resource.ContractHoursPerMonth = *req.ContractHoursPerMonth
	}
	if req.Availability != nil {
		resource.Availability = *req.Availability
	}
	if req.Absences != nil {
		resource.Absences = *req.Absences
	}
	if req.PreferredShiftCodes != nil {
		resource.PreferredShiftCodes = *req.PreferredShiftCodes
	}
	if req.UndesiredShiftCodes != nil {
		resource.UndesiredShiftCodes = *req.UndesiredShiftCodes
	}
	if req.Notes != nil {
		resource.Notes = req.Notes
	}

	if err := h.repository.UpdateResource(resource); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "人员信息已被他人修改，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "人员信息更新成功", resource)
}

func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	resource := r.Context().Value(ResourceCtx).(*domain.Resource)

	if err := h.repository.DeleteResource(resource.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "人员删除成功", nil)
}
