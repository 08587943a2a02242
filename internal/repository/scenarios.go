package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

func (r *Repository) GetScenarioByID(id int64) (*domain.Scenario, error) {
	query := `
		SELECT month, name, status, created_at, updated_at, version
		FROM scenarios
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	scenario := &domain.Scenario{
		ID: id,
	}

	dst := []any{&scenario.Month, &scenario.Name, &scenario.Status, &scenario.CreatedAt, &scenario.UpdatedAt, &scenario.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return scenario, nil
}

func (r *Repository) GetAllScenarios() ([]*domain.Scenario, error) {
	query := `
		SELECT id, month, name, status, created_at, updated_at, version
		FROM scenarios
		ORDER BY month, id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scenarios := make([]*domain.Scenario, 0)
	for rows.Next() {
		scenario := &domain.Scenario{}
		dst := []any{&scenario.ID, &scenario.Month, &scenario.Name, &scenario.Status, &scenario.CreatedAt, &scenario.UpdatedAt, &scenario.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, scenario)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return scenarios, nil
}

// GetScenarioByMonthAndStatus 返回某个月处于指定状态的方案。
// 业务不变量保证每个月至多有一个 preparation 和一个 approved 方案。
func (r *Repository) GetScenarioByMonthAndStatus(month string, status domain.ScenarioStatus) (*domain.Scenario, error) {
	query := `
		SELECT id, name, created_at, updated_at, version
		FROM scenarios
		WHERE month = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	scenario := &domain.Scenario{
		Month:  month,
		Status: status,
	}

	dst := []any{&scenario.ID, &scenario.Name, &scenario.CreatedAt, &scenario.UpdatedAt, &scenario.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, month, status).Scan(dst...); err != nil {
		return nil, err
	}

	return scenario, nil
}

func (r *Repository) CreateScenario(scenario *domain.Scenario) error {
	query := `
		INSERT INTO scenarios (month, name, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{scenario.Month, scenario.Name, scenario.Status}
	dst := []any{&scenario.ID, &scenario.CreatedAt, &scenario.UpdatedAt, &scenario.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}
