package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// GetVersionsByScenarioID 返回某个方案的版本历史，最新的在最前面
func (r *Repository) GetVersionsByScenarioID(scenarioID int64) ([]*domain.PlanVersion, error) {
	query := `
		SELECT id, label, summary, published_at, published_by, created_at
		FROM plan_versions
		WHERE scenario_id = $1
		ORDER BY created_at DESC, id DESC
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]*domain.PlanVersion, 0)
	for rows.Next() {
		version := &domain.PlanVersion{
			ScenarioID: scenarioID,
		}
		var summary []byte

		dst := []any{&version.ID, &version.Label, &summary, &version.PublishedAt, &version.PublishedBy, &version.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(summary, &version.Summary); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return versions, nil
}

// GetLatestVersionByScenarioID 返回某个方案最近创建的版本
func (r *Repository) GetLatestVersionByScenarioID(scenarioID int64) (*domain.PlanVersion, error) {
	query := `
		SELECT id, label, summary, published_at, published_by, created_at
		FROM plan_versions
		WHERE scenario_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	version := &domain.PlanVersion{
		ScenarioID: scenarioID,
	}
	var summary []byte

	dst := []any{&version.ID, &version.Label, &summary, &version.PublishedAt, &version.PublishedBy, &version.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, scenarioID).Scan(dst...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &version.Summary); err != nil {
		return nil, err
	}

	return version, nil
}
