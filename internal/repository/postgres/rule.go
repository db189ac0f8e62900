package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medflow/scheduler-api/internal/model"
)

type businessRuleRow struct {
	ID         uuid.UUID       `db:"id"`
	ClinicID   uuid.UUID       `db:"clinic_id"`
	Name       string          `db:"name"`
	Priority   int             `db:"priority"`
	IsActive   bool            `db:"is_active"`
	Conditions json.RawMessage `db:"conditions"`
	Actions    pq.StringArray  `db:"actions"`
}

func (r *ruleRepository) LoadActiveRules(ctx context.Context, clinicID uuid.UUID) ([]model.BusinessRule, error) {
	query := `
		SELECT id, clinic_id, name, priority, is_active, conditions, actions
		FROM business_rules
		WHERE clinic_id = $1 AND is_active = true AND deleted_at IS NULL
		ORDER BY priority ASC, name ASC
	`

	var rows []businessRuleRow
	if err := r.db.SelectContext(ctx, &rows, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}

	rules := make([]model.BusinessRule, 0, len(rows))
	for _, row := range rows {
		var conditions model.RuleConditions
		if err := json.Unmarshal(row.Conditions, &conditions); err != nil {
			return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", row.ID, err)
		}

		rule := model.BusinessRule{
			ClinicID:   row.ClinicID,
			Name:       row.Name,
			Priority:   row.Priority,
			IsActive:   row.IsActive,
			Conditions: conditions,
			Actions:    row.Actions,
		}
		rule.ID = row.ID
		rules = append(rules, rule)
	}
	return rules, nil
}
