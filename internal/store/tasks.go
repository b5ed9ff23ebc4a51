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

// TaskInput is the payload for creating a task.
type TaskInput struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	AgentID        string                 `json:"agent_id"`
	Category       string                 `json:"category"`
	ProjectID      *string                `json:"project_id"`
	Priority       string                 `json:"priority"`
	Status         string                 `json:"status"`
	Description    string                 `json:"description"`
	EstimatedHours *float64               `json:"estimated_hours"`
	ActualHours    *float64               `json:"actual_hours"`
	Meta           map[string]interface{} `json:"meta"`
	// CreatedAt backdates the task; zero means now. Used by seeding.
	CreatedAt time.Time `json:"-"`
}

// TaskPatch is a partial task update. completed_at is derived from status
// transitions and cannot be set directly.
type TaskPatch struct {
	Title          models.Optional[string]                 `json:"title"`
	AgentID        models.Optional[string]                 `json:"agent_id"`
	Category       models.Optional[string]                 `json:"category"`
	ProjectID      models.Optional[string]                 `json:"project_id"`
	Priority       models.Optional[string]                 `json:"priority"`
	Status         models.Optional[string]                 `json:"status"`
	Description    models.Optional[string]                 `json:"description"`
	EstimatedHours models.Optional[float64]                `json:"estimated_hours"`
	ActualHours    models.Optional[float64]                `json:"actual_hours"`
	Meta           models.Optional[map[string]interface{}] `json:"meta"`
}

// TaskFilter narrows FindAll. Zero fields do not constrain.
type TaskFilter struct {
	AgentID   string
	ProjectID string
	Status    string
	Category  string
	Priority  string
	// From and To bound created_at inclusively.
	From *time.Time
	To   *time.Time
	// SortBy is one of models.TaskSortFields; empty means created_at.
	SortBy string
	// SortOrder is "asc" or "desc"; empty means desc.
	SortOrder string
}

var nullableTaskColumns = map[string]bool{"completed_at": true}

// TaskRepo persists tasks.
type TaskRepo struct {
	db *gorm.DB
}

func (r *TaskRepo) build(in TaskInput) (models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if err := requiredField("title", title); err != nil {
		return models.Task{}, err
	}
	if err := requiredField("agent_id", in.AgentID); err != nil {
		return models.Task{}, err
	}

	task := models.Task{
		ID:             newID(in.ID),
		Title:          title,
		AgentID:        in.AgentID,
		Category:       orDefault(in.Category, models.DefaultCategory),
		ProjectID:      emptyToNil(in.ProjectID),
		Priority:       orDefault(in.Priority, models.DefaultPriority),
		Status:         orDefault(in.Status, models.DefaultTaskStatus),
		Description:    in.Description,
		EstimatedHours: in.EstimatedHours,
		ActualHours:    in.ActualHours,
		Meta:           jsonMap(in.Meta),
	}
	if !in.CreatedAt.IsZero() {
		task.CreatedAt = in.CreatedAt.UTC()
	}
	if task.Status == models.TaskStatusCompleted {
		ts := now()
		if !task.CreatedAt.IsZero() {
			ts = task.CreatedAt
		}
		task.CompletedAt = &ts
	}
	return task, nil
}

func (r *TaskRepo) Create(ctx context.Context, in TaskInput) (*models.Task, error) {
	task, err := r.build(in)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return r.FindByID(ctx, task.ID)
}

// BatchCreate inserts all tasks in one transaction; either every task is
// stored or none is.
func (r *TaskRepo) BatchCreate(ctx context.Context, inputs []TaskInput) ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(inputs))
	for i, in := range inputs {
		task, err := r.build(in)
		if err != nil {
			if fe, ok := err.(*FieldError); ok {
				return nil, &FieldError{Field: fmt.Sprintf("tasks[%d].%s", i, fe.Field), Message: fe.Message}
			}
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&tasks).Error
	})
	if err != nil {
		return nil, fmt.Errorf("batch creating tasks: %w", err)
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return tasks, nil
}

func (r *TaskRepo) FindByID(ctx context.Context, id string) (*models.Task, error) {
	task, err := findOne[models.Task](ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("finding task %s: %w", id, err)
	}
	return normalizeTask(task), nil
}

// FindAll returns one page of tasks matching f, sorted before pagination.
func (r *TaskRepo) FindAll(ctx context.Context, f TaskFilter, p Page) (*Result[models.Task], error) {
	q := r.db.WithContext(ctx).Model(&models.Task{})
	if f.AgentID != "" {
		q = q.Where("agent_id = ?", f.AgentID)
	}
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}

	sorted, err := orderTasks(q, f.SortBy, f.SortOrder)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := paginate(sorted, p).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return &Result[models.Task]{Items: tasks, Total: total}, nil
}

// orderTasks applies an allow-listed sort. NULLs order as the empty string:
// first ascending, last descending. Priority sorts by urgency. Ties break by
// id in the same direction.
func orderTasks(q *gorm.DB, field, order string) (*gorm.DB, error) {
	if field == "" {
		field = "created_at"
	}
	if !models.OneOf(field, models.TaskSortFields) {
		return nil, &FieldError{Field: "sortBy", Message: "unsupported sort field " + field}
	}
	dir := "DESC"
	switch strings.ToLower(order) {
	case "", "desc":
	case "asc":
		dir = "ASC"
	default:
		return nil, &FieldError{Field: "sortOrder", Message: "unsupported sort order " + order}
	}

	if nullableTaskColumns[field] {
		nullsDir := "DESC"
		if dir == "DESC" {
			nullsDir = "ASC"
		}
		q = q.Order(fmt.Sprintf("CASE WHEN %s IS NULL THEN 1 ELSE 0 END %s", field, nullsDir))
	}
	column := field
	if field == "priority" {
		column = priorityRankExpr()
	}
	return q.Order(column + " " + dir).Order("id " + dir), nil
}

// priorityRankExpr orders priorities by urgency rather than alphabetically.
func priorityRankExpr() string {
	var b strings.Builder
	b.WriteString("CASE priority")
	for _, p := range models.Priorities {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, models.PriorityRank(p))
	}
	b.WriteString(" ELSE -1 END")
	return b.String()
}

// Today returns tasks created on the UTC calendar day containing at.
func (r *TaskRepo) Today(ctx context.Context, at time.Time) ([]models.Task, error) {
	start := at.UTC().Truncate(24 * time.Hour)
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, start.Add(24*time.Hour)).
		Order("created_at DESC").Order("id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("listing today's tasks: %w", err)
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return tasks, nil
}

// Update applies patch. A transition into completed stamps completed_at;
// other edits leave it untouched.
func (r *TaskRepo) Update(ctx context.Context, id string, patch TaskPatch) (*models.Task, error) {
	task, err := r.FindByID(ctx, id)
	if err != nil || task == nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Title.Set {
		title := strings.TrimSpace(patch.Title.Value)
		if title == "" {
			return nil, &FieldError{Field: "title", Message: "is required"}
		}
		updates["title"] = title
	}
	if patch.AgentID.Set {
		if strings.TrimSpace(patch.AgentID.Value) == "" {
			return nil, &FieldError{Field: "agent_id", Message: "is required"}
		}
		updates["agent_id"] = patch.AgentID.Value
	}
	if patch.Category.Set {
		updates["category"] = orDefault(patch.Category.Value, models.DefaultCategory)
	}
	if patch.ProjectID.Set {
		updates["project_id"] = emptyToNil(optionalPtr(patch.ProjectID))
	}
	if patch.Priority.Set {
		updates["priority"] = orDefault(patch.Priority.Value, models.DefaultPriority)
	}
	if patch.Status.Set {
		status := orDefault(patch.Status.Value, models.DefaultTaskStatus)
		updates["status"] = status
		if status == models.TaskStatusCompleted && task.Status != models.TaskStatusCompleted {
			updates["completed_at"] = now()
		}
	}
	if patch.Description.Set {
		updates["description"] = patch.Description.Value
	}
	if patch.EstimatedHours.Set {
		updates["estimated_hours"] = optionalPtr(patch.EstimatedHours)
	}
	if patch.ActualHours.Set {
		updates["actual_hours"] = optionalPtr(patch.ActualHours)
	}
	if patch.Meta.Set {
		updates["meta"] = jsonMap(patch.Meta.Value)
	}
	if len(updates) == 0 {
		return task, nil
	}

	if err := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

// BatchUpdateStatus sets status on every listed task in one transaction and
// returns how many rows matched.
func (r *TaskRepo) BatchUpdateStatus(ctx context.Context, ids []string, status string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if status == models.TaskStatusCompleted {
			err := tx.Model(&models.Task{}).
				Where("id IN ? AND status <> ?", ids, models.TaskStatusCompleted).
				Update("completed_at", now()).Error
			if err != nil {
				return err
			}
		}
		res := tx.Model(&models.Task{}).Where("id IN ?", ids).Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("batch updating task status: %w", err)
	}
	return updated, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := deleteOne[models.Task](ctx, r.db, id)
	if err != nil {
		return false, fmt.Errorf("deleting task %s: %w", id, err)
	}
	return ok, nil
}

// DeleteMany deletes each id on its own and returns how many existed. It is
// not atomic: rows deleted before a failure stay deleted.
func (r *TaskRepo) DeleteMany(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		ok, err := r.Delete(ctx, id)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// FindByProject lists the tasks of a project, newest first.
func (r *TaskRepo) FindByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("created_at DESC").Order("id DESC").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("listing tasks of project %s: %w", projectID, err)
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return tasks, nil
}

func normalizeTask(t *models.Task) *models.Task {
	if t == nil {
		return nil
	}
	if t.Meta == nil {
		t.Meta = datatypes.JSONMap{}
	}
	return t
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func optionalPtr[T any](o models.Optional[T]) *T {
	if !o.Present() {
		return nil
	}
	v := o.Value
	return &v
}
