package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

func (h *Handler) GetAllShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.repository.GetAllShifts()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次列表成功", shifts)
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)
	h.successResponse(w, r, "获取班次信息成功", shift)
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code        int32   `json:"code" validate:"required"`
		Description string  `json:"description" validate:"required"`
		StartTime   string  `json:"startTime" validate:"required"`
		EndTime     string  `json:"endTime" validate:"required"`
		Hours       float64 `json:"hours" validate:"required,gt=0,lte=24"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	shift := &domain.Shift{
		Code:        req.Code,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Hours:       req.Hours,
	}

	if err := h.repository.CreateShift(shift); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "shifts_pkey":
			h.badRequest(w, r, errors.New("班次编号已存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "班次创建成功", shift)
}

func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)

	var req struct {
		Description *string  `json:"description"`
		StartTime   *string  `json:"startTime"`
		EndTime     *string  `json:"endTime"`
		Hours       *float64 `json:"hours" validate:"omitempty,gt=0,lte=24"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Description != nil {
		shift.Description = *req.Description
	}
	if req.StartTime != nil {
		shift.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		shift.EndTime = *req.EndTime
	}
	if req.Hours != nil {
		shift.Hours = *req.Hours
	}

	if err := h.repository.UpdateShift(shift); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "班次信息已被他人修改，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "班次信息更新成功", shift)
}

func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	shift := r.Context().Value(ShiftCtx).(*domain.Shift)

	if err := h.repository.DeleteShift(shift.Code); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "班次删除成功", nil)
}
