package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

func (r *Repository) GetAllShifts() ([]*domain.Shift, error) {
	query := `
		SELECT code, description, start_time, end_time, hours, created_at, version
		FROM shifts
		ORDER BY code
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]*domain.Shift, 0)
	for rows.Next() {
		shift := &domain.Shift{}
		dst := []any{&shift.Code, &shift.Description, &shift.StartTime, &shift.EndTime, &shift.Hours, &shift.CreatedAt, &shift.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shifts, nil
}

func (r *Repository) GetShiftByCode(code int32) (*domain.Shift, error) {
	query := `
		SELECT description, start_time, end_time, hours, created_at, version
		FROM shifts
		WHERE code = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	shift := &domain.Shift{
		Code: code,
	}

	dst := []any{&shift.Description, &shift.StartTime, &shift.EndTime, &shift.Hours, &shift.CreatedAt, &shift.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, code).Scan(dst...); err != nil {
		return nil, err
	}

	return shift, nil
}

func (r *Repository) CreateShift(shift *domain.Shift) error {
	query := `
		INSERT INTO shifts (code, description, start_time, end_time, hours)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{shift.Code, shift.Description, shift.StartTime, shift.EndTime, shift.Hours}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&shift.CreatedAt, &shift.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateShift(shift *domain.Shift) error {
	query := `
		UPDATE shifts
		SET
			description = $1,
			start_time = $2,
			end_time = $3,
			hours = $4,
			version = version + 1
		WHERE code = $5 AND version = $6
		RETURNING version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{shift.Description, shift.StartTime, shift.EndTime, shift.Hours, shift.Code, shift.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&shift.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteShift(code int32) error {
	query := `
		DELETE FROM shifts WHERE code = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, code); err != nil {
		return err
	}

	return nil
}
