package repository

import (
	"context"

	"supamon-backend/internal/models"
)

// RuleRepository persists notification rules for all projects in one collection.
type RuleRepository struct {
	items *Collection[models.NotificationRule]
}

// NewRuleRepository stores rules under "<namespace>:notification_rules".
func NewRuleRepository(store SecretStore, namespace string) *RuleRepository {
	return &RuleRepository{items: NewCollection[models.NotificationRule](store, namespace+":notification_rules")}
}

// List returns the rules of projectID, or every rule when projectID is empty.
func (r *RuleRepository) List(ctx context.Context, projectID string) ([]models.NotificationRule, error) {
	if projectID == "" {
		return r.items.List(ctx, nil)
	}
	return r.items.List(ctx, func(rule models.NotificationRule) bool {
		return rule.ProjectID == projectID
	})
}

// Get returns the rule with id, or ok=false.
func (r *RuleRepository) Get(ctx context.Context, id string) (models.NotificationRule, bool, error) {
	return r.items.Get(ctx, id)
}

// Upsert validates and then inserts or fully replaces a rule exactly as
// given. ProjectID is not checked against the project repository.
func (r *RuleRepository) Upsert(ctx context.Context, rule models.NotificationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return r.items.Upsert(ctx, rule)
}

// Remove deletes a rule; absent ids are a no-op.
func (r *RuleRepository) Remove(ctx context.Context, id string) error {
	return r.items.Remove(ctx, id)
}

// SetEnabled flips one rule's enabled flag; absent ids are a silent no-op.
func (r *RuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.items.Update(ctx, id, func(rule *models.NotificationRule) {
		rule.Enabled = enabled
	})
	return err
}
