// Package projects exposes project registration, notification rules and the
// dashboard over HTTP.
package projects

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"supamon-backend/internal/credentials"
	apperrors "supamon-backend/internal/errors"
	"supamon-backend/internal/models"
	"supamon-backend/internal/repository"
)

// DefaultProjectName is used when a project is registered without a name.
const DefaultProjectName = "My Project"

// Validator checks a project URL and credential.
type Validator interface {
	Validate(ctx context.Context, url, credential string) credentials.Result
}

// Snapshotter builds dashboard snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context, project models.Project) models.Snapshot
}

// Service implements the project and rule use cases on top of the repositories.
type Service struct {
	projects  *repository.ProjectRepository
	rules     *repository.RuleRepository
	validator Validator
	dashboard Snapshotter
	now       func() time.Time
	newID     func() string
}

// NewService wires the use cases.
func NewService(projects *repository.ProjectRepository, rules *repository.RuleRepository, validator Validator, dashboard Snapshotter) *Service {
	return &Service{
		projects:  projects,
		rules:     rules,
		validator: validator,
		dashboard: dashboard,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// RegisterInput is what a user supplies to add a project.
type RegisterInput struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	Credential     string `json:"credential"`
	SecondaryToken string `json:"secondaryToken"`
}

// Register validates the credential against the project and stores it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.Project, error) {
	url := strings.TrimRight(strings.TrimSpace(in.URL), "/")
	credential := strings.TrimSpace(in.Credential)
	if url == "" || credential == "" {
		return models.Project{}, apperrors.Validation("url and credential are required")
	}

	res := s.validator.Validate(ctx, url, credential)
	if !res.Valid {
		return models.Project{}, res.Error
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = DefaultProjectName
	}
	project := models.Project{
		ID:             s.newID(),
		Name:           name,
		ProjectRef:     res.ProjectRef,
		URL:            url,
		Credential:     credential,
		SecondaryToken: strings.TrimSpace(in.SecondaryToken),
		Status:         models.StatusHealthy,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.projects.Upsert(ctx, project); err != nil {
		return models.Project{}, err
	}

	logrus.WithFields(logrus.Fields{
		"project_id":  project.ID,
		"project_ref": project.ProjectRef,
	}).Info("Project registered")
	return project, nil
}

// UpdateInput changes selected fields; nil fields are kept.
type UpdateInput struct {
	Name           *string `json:"name"`
	URL            *string `json:"url"`
	Credential     *string `json:"credential"`
	SecondaryToken *string `json:"secondaryToken"`
}

// Update applies in to a stored project. Changing the URL or credential
// re-runs validation.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (models.Project, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return models.Project{}, err
	}

	revalidate := false
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			project.Name = name
		}
	}
	if in.URL != nil {
		project.URL = strings.TrimRight(strings.TrimSpace(*in.URL), "/")
		revalidate = true
	}
	if in.Credential != nil {
		project.Credential = strings.TrimSpace(*in.Credential)
		revalidate = true
	}
	if in.SecondaryToken != nil {
		project.SecondaryToken = strings.TrimSpace(*in.SecondaryToken)
	}

	if revalidate {
		if project.URL == "" || project.Credential == "" {
			return models.Project{}, apperrors.Validation("url and credential are required")
		}
		res := s.validator.Validate(ctx, project.URL, project.Credential)
		if !res.Valid {
			return models.Project{}, res.Error
		}
		project.ProjectRef = res.ProjectRef
	}

	if err := s.projects.Upsert(ctx, project); err != nil {
		return models.Project{}, err
	}
	return project, nil
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]models.Project, error) {
	return s.projects.List(ctx)
}

// Get returns a project or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (models.Project, error) {
	project, ok, err := s.projects.Get(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if !ok {
		return models.Project{}, apperrors.ErrNotFound
	}
	return project, nil
}

// Remove deletes a project. Its rules are kept.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.projects.Remove(ctx, id)
}

// Dashboard snapshots a project. With persist the derived status is written
// back to the project record.
func (s *Service) Dashboard(ctx context.Context, id string, persist bool) (models.Snapshot, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	snap := s.dashboard.Snapshot(ctx, project)
	if persist && snap.Status != project.Status {
		if err := s.projects.SetStatus(ctx, project.ID, snap.Status); err != nil {
			logrus.WithField("project_id", project.ID).Warnf("Could not record project status: %v", err)
		}
	}
	return snap, nil
}

// RuleInput is the user supplied part of a notification rule.
type RuleInput struct {
	Name        string             `json:"name"`
	Enabled     *bool              `json:"enabled"`
	TriggerType models.TriggerType `json:"triggerType"`
	TableName   string             `json:"tableName"`
	Threshold   *models.Threshold  `json:"threshold"`
	Message     string             `json:"message"`
}

func (in RuleInput) apply(rule models.NotificationRule) models.NotificationRule {
	rule.Name = in.Name
	rule.TriggerType = in.TriggerType
	rule.TableName = in.TableName
	rule.Threshold = in.Threshold
	rule.Message = in.Message
	if in.Enabled != nil {
		rule.Enabled = *in.Enabled
	}
	return rule
}

// CreateRule adds a rule to an existing project. Rules start enabled.
func (s *Service) CreateRule(ctx context.Context, projectID string, in RuleInput) (models.NotificationRule, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return models.NotificationRule{}, err
	}
	rule := in.apply(models.NotificationRule{
		ID:        s.newID(),
		ProjectID: projectID,
		Enabled:   true,
		CreatedAt: s.now().UTC(),
	}).Normalize()
	if err := s.rules.Upsert(ctx, rule); err != nil {
		return models.NotificationRule{}, err
	}
	return rule, nil
}

// ReplaceRule overwrites the editable fields of a rule.
func (s *Service) ReplaceRule(ctx context.Context, id string, in RuleInput) (models.NotificationRule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return models.NotificationRule{}, err
	}
	rule = in.apply(rule).Normalize()
	if err := s.rules.Upsert(ctx, rule); err != nil {
		return models.NotificationRule{}, err
	}
	return rule, nil
}

// ListRules returns the rules of projectID, or all rules when it is empty.
func (s *Service) ListRules(ctx context.Context, projectID string) ([]models.NotificationRule, error) {
	return s.rules.List(ctx, projectID)
}

// GetRule returns a rule or ErrNotFound.
func (s *Service) GetRule(ctx context.Context, id string) (models.NotificationRule, error) {
	rule, ok, err := s.rules.Get(ctx, id)
	if err != nil {
		return models.NotificationRule{}, err
	}
	if !ok {
		return models.NotificationRule{}, apperrors.ErrNotFound
	}
	return rule, nil
}

// SetRuleEnabled toggles a rule and returns its new state.
func (s *Service) SetRuleEnabled(ctx context.Context, id string, enabled bool) (models.NotificationRule, error) {
	if err := s.rules.SetEnabled(ctx, id, enabled); err != nil {
		return models.NotificationRule{}, err
	}
	return s.GetRule(ctx, id)
}

// DeleteRule removes a rule; unknown ids are ignored.
func (s *Service) DeleteRule(ctx context.Context, id string) error {
	return s.rules.Remove(ctx, id)
}
