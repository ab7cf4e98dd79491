package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vibarr/core/internal/vibarrerr"
)

func (s *Store) CreateAutomationRule(ctx context.Context, r *AutomationRule) error {
	return s.DB.WithContext(ctx).Create(r).Error
}

func (s *Store) GetAutomationRule(ctx context.Context, id uint) (*AutomationRule, error) {
	var r AutomationRule
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "automation rule not found")
	}
	return &r, nil
}

// EnabledRulesForTrigger returns enabled rules matching a trigger kind,
// ordered by Priority descending so the rules engine evaluates
// higher-priority rules first. A "skip_item" action halts only the
// remaining actions of its own rule; lower-priority rules still run.
func (s *Store) EnabledRulesForTrigger(ctx context.Context, trigger string) ([]AutomationRule, error) {
	var out []AutomationRule
	err := s.DB.WithContext(ctx).
		Where("enabled = ? AND trigger = ?", true, trigger).
		Order("priority desc, id asc").
		Find(&out).Error
	return out, err
}

func (s *Store) RecordRuleFired(ctx context.Context, id uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&AutomationRule{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_triggered_at": now,
			"trigger_count":     gorm.Expr("trigger_count + 1"),
		}).Error
}

func (s *Store) AppendRuleExecutionLog(ctx context.Context, l *RuleExecutionLog) error {
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = time.Now()
	}
	return s.DB.WithContext(ctx).Create(l).Error
}

func (s *Store) RuleExecutionHistory(ctx context.Context, ruleID uint, limit int) ([]RuleExecutionLog, error) {
	var out []RuleExecutionLog
	q := s.DB.WithContext(ctx).Where("rule_id = ?", ruleID).Order("executed_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
