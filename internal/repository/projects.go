package repository

import (
	"context"

	"supamon-backend/internal/models"
)

// ProjectRepository persists registered projects.
type ProjectRepository struct {
	items *Collection[models.Project]
}

// NewProjectRepository stores projects under "<namespace>:projects".
func NewProjectRepository(store SecretStore, namespace string) *ProjectRepository {
	return &ProjectRepository{items: NewCollection[models.Project](store, namespace+":projects")}
}

// List returns all projects in registration order.
func (r *ProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	return r.items.List(ctx, nil)
}

// Get returns the project with id, or ok=false.
func (r *ProjectRepository) Get(ctx context.Context, id string) (models.Project, bool, error) {
	return r.items.Get(ctx, id)
}

// Upsert inserts or fully replaces a project.
func (r *ProjectRepository) Upsert(ctx context.Context, project models.Project) error {
	return r.items.Upsert(ctx, project)
}

// Remove deletes a project. Rules referencing it are left in place.
func (r *ProjectRepository) Remove(ctx context.Context, id string) error {
	return r.items.Remove(ctx, id)
}

// SetStatus records a derived health status; absent ids are a no-op.
func (r *ProjectRepository) SetStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	_, err := r.items.Update(ctx, id, func(p *models.Project) {
		p.Status = status
	})
	return err
}
