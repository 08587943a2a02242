package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// 资源的每周可用性模板、缺勤时间段和班次偏好都以 JSONB 存储

func scanResourceJSON(resource *domain.Resource, availability, absences, preferred, undesired []byte) error {
	if err := json.Unmarshal(availability, &resource.Availability); err != nil {
		return err
	}
	if err := json.Unmarshal(absences, &resource.Absences); err != nil {
		return err
	}
	if err := json.Unmarshal(preferred, &resource.PreferredShiftCodes); err != nil {
		return err
	}
	if err := json.Unmarshal(undesired, &resource.UndesiredShiftCodes); err != nil {
		return err
	}
	return nil
}

func marshalResourceJSON(resource *domain.Resource) (availability, absences, preferred, undesired []byte, err error) {
	if resource.Availability == nil {
		resource.Availability = []domain.AvailabilityWindow{}
	}
	if resource.Absences == nil {
		resource.Absences = []domain.AbsenceWindow{}
	}
	if resource.PreferredShiftCodes == nil {
		resource.PreferredShiftCodes = []int32{}
	}
	if resource.UndesiredShiftCodes == nil {
		resource.UndesiredShiftCodes = []int32{}
	}

	if availability, err = json.Marshal(resource.Availability); err != nil {
		return nil, nil, nil, nil, err
	}
	if absences, err = json.Marshal(resource.Absences); err != nil {
		return nil, nil, nil, nil, err
	}
	if preferred, err = json.Marshal(resource.PreferredShiftCodes); err != nil {
		return nil, nil, nil, nil, err
	}
	if undesired, err = json.Marshal(resource.UndesiredShiftCodes); err != nil {
		return nil, nil, nil, nil, err
	}
	return availability, absences, preferred, undesired, nil
}

func (r *Repository) GetAllResources() ([]*domain.Resource, error) {
	query := `
		SELECT
			id,
			name,
			role,
			availability_percent,
			contract_hours_per_month,
			availability,
			absences,
			preferred_shift_codes,
			undesired_shift_codes,
			notes,
			created_at,
			version
		FROM resources
		ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]*domain.Resource, 0)
	for rows.Next() {
		resource := &domain.Resource{}
		var availability, absences, preferred, undesired []byte

		dst := []any{
			&resource.ID,
			&resource.Name,
			&resource.Role,
			&resource.AvailabilityPercent,
			&resource.ContractHoursPerMonth,
			&availability,
			&absences,
			&preferred,
			&undesired,
			&resource.Notes,
			&resource.CreatedAt,
			&resource.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if err := scanResourceJSON(resource, availability, absences, preferred, undesired); err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return resources, nil
}

func (r *Repository) GetResourceByID(id int64) (*domain.Resource, error) {
	query := `
		SELECT
			name,
			role,
			availability_percent,
			contract_hours_per_month,
			availability,
			absences,
			preferred_shift_codes,
			undesired_shift_codes,
			notes,
			created_at,
			version
		FROM resources
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	resource := &domain.Resource{
		ID: id,
	}
	var availability, absences, preferred, undesired []byte

	dst := []any{
		&resource.Name,
		&resource.Role,
		&resource.AvailabilityPercent,
		&resource.ContractHoursPerMonth,
		&availability,
		&absences,
		&preferred,
		&undesired,
		&resource.Notes,
		&resource.CreatedAt,
		&resource.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}
	if err := scanResourceJSON(resource, availability, absences, preferred, undesired); err != nil {
		return nil, err
	}

	return resource, nil
}

func (r *Repository) CreateResource(resource *domain.Resource) error {
	availability, absences, preferred, undesired, err := marshalResourceJSON(resource)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO resources (
			name,
			role,
			availability_percent,
			contract_hours_per_month,
			availability,
			absences,
			preferred_shift_codes,
			undesired_shift_codes,
			notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{
		resource.Name,
		resource.Role,
		resource.AvailabilityPercent,
		resource.ContractHoursPerMonth,
		availability,
		absences,
		preferred,
		undesired,
		resource.Notes,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&resource.ID, &resource.CreatedAt, &resource.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateResource(resource *domain.Resource) error {
	availability, absences, preferred, undesired, err := marshalResourceJSON(resource)
	if err != nil {
		return err
	}

	query := `
		UPDATE resources
		SET
			name = $1,
			role = $2,
			availability_percent = $3,
			contract_hours_per_month = $4,
			availability = $5,
			absences = $6,
			preferred_shift_codes = $7,
			undesired_shift_codes = $8,
			notes = $9,
			version = version + 1
		WHERE id = $10 AND version = $11
		RETURNING version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{
		resource.Name,
		resource.Role,
		resource.AvailabilityPercent,
		resource.ContractHoursPerMonth,
		availability,
		absences,
		preferred,
		undesired,
		resource.Notes,
		resource.ID,
		resource.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&resource.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteResource(id int64) error {
	query := `
		DELETE FROM resources WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}
