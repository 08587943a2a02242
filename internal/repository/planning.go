package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

// 方案的每一次变更（生成、应用建议、发布）都必须和新版本快照在同一个事务内落库，
// 要么全部成功要么全部失败，保证条目、违规统计和版本历史互相一致。

func nextVersionLabel(ctx context.Context, tx *sql.Tx, scenarioID int64) (string, error) {
	var count int
	query := `SELECT COUNT(id) FROM plan_versions WHERE scenario_id = $1`
	if err := tx.QueryRowContext(ctx, query, scenarioID).Scan(&count); err != nil {
		return "", err
	}
	return fmt.Sprintf("v%d", count+1), nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, version *domain.PlanVersion) error {
	if version.Label == "" {
		label, err := nextVersionLabel(ctx, tx, version.ScenarioID)
		if err != nil {
			return err
		}
		version.Label = label
	}

	summary, err := json.Marshal(version.Summary)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO plan_versions (scenario_id, label, summary, published_at, published_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	args := []any{version.ScenarioID, version.Label, summary, version.PublishedAt, version.PublishedBy}
	return tx.QueryRowContext(ctx, query, args...).Scan(&version.ID, &version.CreatedAt)
}

func touchScenario(ctx context.Context, tx *sql.Tx, scenario *domain.Scenario) error {
	query := `
		UPDATE scenarios
		SET updated_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING updated_at, version
	`
	return tx.QueryRowContext(ctx, query, scenario.ID, scenario.Version).Scan(&scenario.UpdatedAt, &scenario.Version)
}

// StoreGeneration 用一次全新的生成结果覆盖方案条目并追加版本快照
func (r *Repository) StoreGeneration(scenario *domain.Scenario, entries []*domain.PlanningEntry, version *domain.PlanVersion) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 先清空旧条目
	if _, err := tx.ExecContext(ctx, `DELETE FROM planning_entries WHERE scenario_id = $1`, scenario.ID); err != nil {
		return err
	}

	query := `
		INSERT INTO planning_entries (scenario_id, resource_id, date, shift_code, absence_type, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for _, entry := range entries {
		entry.ScenarioID = scenario.ID
		args := []any{scenario.ID, entry.ResourceID, entry.Date, entry.ShiftCode, entry.AbsenceType, entry.Comment}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&entry.ID); err != nil {
			return err
		}
	}

	version.ScenarioID = scenario.ID
	if err := insertVersion(ctx, tx, version); err != nil {
		return err
	}

	if err := touchScenario(ctx, tx, scenario); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyEntryChange 按幂等语义对单个格子应用修改并追加版本快照：
//   - assign_shift 覆盖 (resource, date) 上已有的条目
//   - set_rest_day 将格子改写为休息日
//   - remove_assignment 删除格子上的条目，格子已空时为空操作
func (r *Repository) ApplyEntryChange(scenario *domain.Scenario, change *domain.SuggestedChange, version *domain.PlanVersion) error {
	date, err := time.Parse(domain.DateLayout, change.Date)
	if err != nil {
		return domain.NewDataIntegrityError("修改的日期格式无效: %s", change.Date)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	switch change.Action {
	case domain.ChangeAssignShift:
		query := `
			INSERT INTO planning_entries (scenario_id, resource_id, date, shift_code, absence_type)
			VALUES ($1, $2, $3, $4, NULL)
			ON CONFLICT (scenario_id, resource_id, date)
			DO UPDATE SET shift_code = EXCLUDED.shift_code, absence_type = NULL
		`
		if _, err := tx.ExecContext(ctx, query, scenario.ID, change.ResourceID, date, change.ShiftCode); err != nil {
			return err
		}
	case domain.ChangeSetRestDay:
		absenceType := domain.AbsenceRest
		if change.AbsenceType != nil {
			absenceType = *change.AbsenceType
		}
		query := `
			INSERT INTO planning_entries (scenario_id, resource_id, date, shift_code, absence_type)
			VALUES ($1, $2, $3, NULL, $4)
			ON CONFLICT (scenario_id, resource_id, date)
			DO UPDATE SET shift_code = NULL, absence_type = EXCLUDED.absence_type
		`
		if _, err := tx.ExecContext(ctx, query, scenario.ID, change.ResourceID, date, absenceType); err != nil {
			return err
		}
	case domain.ChangeRemoveAssignment:
		query := `
			DELETE FROM planning_entries
			WHERE scenario_id = $1 AND resource_id = $2 AND date = $3
		`
		if _, err := tx.ExecContext(ctx, query, scenario.ID, change.ResourceID, date); err != nil {
			return err
		}
	default:
		return domain.NewDataIntegrityError("未知的修改动作: %s", change.Action)
	}

	version.ScenarioID = scenario.ID
	if err := insertVersion(ctx, tx, version); err != nil {
		return err
	}

	if err := touchScenario(ctx, tx, scenario); err != nil {
		return err
	}

	return tx.Commit()
}

// ApproveScenario 发布方案：同月之前已发布的方案降级为 superseded，
// 当前方案转为 approved 并追加带发布信息的终版快照
func (r *Repository) ApproveScenario(scenario *domain.Scenario, publishedBy string, version *domain.PlanVersion) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 每个月至多保留一个生效的已发布方案
	demote := `
		UPDATE scenarios
		SET status = $1, updated_at = NOW(), version = version + 1
		WHERE month = $2 AND status = $3 AND id <> $4
	`
	if _, err := tx.ExecContext(ctx, demote, domain.ScenarioStatusSuperseded, scenario.Month, domain.ScenarioStatusApproved, scenario.ID); err != nil {
		return err
	}

	approve := `
		UPDATE scenarios
		SET status = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING updated_at, version
	`
	if err := tx.QueryRowContext(ctx, approve, domain.ScenarioStatusApproved, scenario.ID, scenario.Version).Scan(&scenario.UpdatedAt, &scenario.Version); err != nil {
		return err
	}
	scenario.Status = domain.ScenarioStatusApproved

	now := time.Now()
	version.ScenarioID = scenario.ID
	version.PublishedAt = &now
	version.PublishedBy = &publishedBy
	if err := insertVersion(ctx, tx, version); err != nil {
		return err
	}

	return tx.Commit()
}
