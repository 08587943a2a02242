package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// GetEntriesByScenarioID 返回某个方案的全部条目，按日期和资源 ID 排序
func (r *Repository) GetEntriesByScenarioID(scenarioID int64) ([]*domain.PlanningEntry, error) {
	query := `
		SELECT id, resource_id, date, shift_code, absence_type, comment
		FROM planning_entries
		WHERE scenario_id = $1
		ORDER BY date, resource_id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.PlanningEntry, 0)
	for rows.Next() {
		entry := &domain.PlanningEntry{
			ScenarioID: scenarioID,
		}
		dst := []any{&entry.ID, &entry.ResourceID, &entry.Date, &entry.ShiftCode, &entry.AbsenceType, &entry.Comment}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
