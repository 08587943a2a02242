package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/rules"
)

// GetActiveRuleConfig 返回当前启用的规则配置，
// 数据库中没有时回退到内置的默认规则
func (r *Repository) GetActiveRuleConfig() (*rules.RuleConfig, error) {
	query := `
		SELECT rules FROM rule_configs
		WHERE is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var raw []byte
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rules.DefaultRules(), nil
		}
		return nil, err
	}

	cfg := &rules.RuleConfig{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateActiveRuleConfig 停用其他配置并写入新的启用配置
func (r *Repository) UpdateActiveRuleConfig(name string, cfg *rules.RuleConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
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

	if _, err := tx.ExecContext(ctx, `UPDATE rule_configs SET is_active = FALSE`); err != nil {
		return err
	}

	query := `
		INSERT INTO rule_configs (name, rules, is_active)
		VALUES ($1, $2, TRUE)
	`
	if _, err := tx.ExecContext(ctx, query, name, raw); err != nil {
		return err
	}

	return tx.Commit()
}
