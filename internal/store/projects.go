package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/models"
)

// ProjectInput is the payload for creating a project.
type ProjectInput struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"`
	Progress    float64                `json:"progress"`
	StartDate   *time.Time             `json:"start_date"`
	EndDate     *time.Time             `json:"end_date"`
	TeamMembers []string               `json:"team_members"`
	Meta        map[string]interface{} `json:"meta"`
}

// ProjectPatch is a partial project update.
type ProjectPatch struct {
	Name        models.Optional[string]                 `json:"name"`
	Description models.Optional[string]                 `json:"description"`
	Status      models.Optional[string]                 `json:"status"`
	Progress    models.Optional[float64]                `json:"progress"`
	StartDate   models.Optional[time.Time]              `json:"start_date"`
	EndDate     models.Optional[time.Time]              `json:"end_date"`
	TeamMembers models.Optional[[]string]               `json:"team_members"`
	Meta        models.Optional[map[string]interface{}] `json:"meta"`
}

// ProjectFilter narrows FindAll.
type ProjectFilter struct {
	Status string
}

// ProjectRepo persists projects.
type ProjectRepo struct {
	db *gorm.DB
}

func (r *ProjectRepo) Create(ctx context.Context, in ProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if err := requiredField("name", name); err != nil {
		return nil, err
	}

	project := models.Project{
		ID:          newID(in.ID),
		Name:        name,
		Description: in.Description,
		Status:      orDefault(in.Status, models.DefaultProjectStatus),
		Progress:    in.Progress,
		StartDate:   now(),
		EndDate:     in.EndDate,
		TeamMembers: stringSlice(in.TeamMembers),
		Meta:        jsonMap(in.Meta),
	}
	if in.StartDate != nil {
		project.StartDate = in.StartDate.UTC()
	}
	if err := r.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return r.FindByID(ctx, project.ID)
}

func (r *ProjectRepo) FindByID(ctx context.Context, id string) (*models.Project, error) {
	project, err := findOne[models.Project](ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("finding project %s: %w", id, err)
	}
	return normalizeProject(project), nil
}

// FindByIDs loads the listed projects, newest first. Unknown ids are skipped.
func (r *ProjectRepo) FindByIDs(ctx context.Context, ids []string) ([]models.Project, error) {
	projects := []models.Project{}
	if len(ids) == 0 {
		return projects, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).
		Order("created_at DESC").Order("id DESC").Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	for i := range projects {
		normalizeProject(&projects[i])
	}
	return projects, nil
}

func (r *ProjectRepo) FindAll(ctx context.Context, f ProjectFilter, p Page) (*Result[models.Project], error) {
	q := r.db.WithContext(ctx).Model(&models.Project{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting projects: %w", err)
	}

	var projects []models.Project
	if err := paginate(q.Order("created_at DESC").Order("id DESC"), p).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	for i := range projects {
		normalizeProject(&projects[i])
	}
	return &Result[models.Project]{Items: projects, Total: total}, nil
}

func (r *ProjectRepo) Update(ctx context.Context, id string, patch ProjectPatch) (*models.Project, error) {
	project, err := r.FindByID(ctx, id)
	if err != nil || project == nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Name.Set {
		name := strings.TrimSpace(patch.Name.Value)
		if name == "" {
			return nil, &FieldError{Field: "name", Message: "is required"}
		}
		updates["name"] = name
	}
	if patch.Description.Set {
		updates["description"] = patch.Description.Value
	}
	if patch.Status.Set {
		updates["status"] = orDefault(patch.Status.Value, models.DefaultProjectStatus)
	}
	if patch.Progress.Set {
		updates["progress"] = patch.Progress.Value
	}
	if patch.StartDate.Present() {
		updates["start_date"] = patch.StartDate.Value.UTC()
	}
	if patch.EndDate.Set {
		updates["end_date"] = optionalPtr(patch.EndDate)
	}
	if patch.TeamMembers.Set {
		updates["team_members"] = stringSlice(patch.TeamMembers.Value)
	}
	if patch.Meta.Set {
		updates["meta"] = jsonMap(patch.Meta.Value)
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating project %s: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

// Delete removes the project; its tasks stay with project_id cleared.
func (r *ProjectRepo) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := deleteOne[models.Project](ctx, r.db, id)
	if err != nil {
		return false, fmt.Errorf("deleting project %s: %w", id, err)
	}
	return ok, nil
}

// Exists reports whether a project with id exists.
func (r *ProjectRepo) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.db, &models.Project{}, id)
}

func normalizeProject(p *models.Project) *models.Project {
	if p == nil {
		return nil
	}
	if p.TeamMembers == nil {
		p.TeamMembers = datatypes.JSONSlice[string]{}
	}
	if p.Meta == nil {
		p.Meta = datatypes.JSONMap{}
	}
	return p
}
