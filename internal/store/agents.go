package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/models"
)

// AgentInput is the payload for creating an agent.
type AgentInput struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Avatar      string                 `json:"avatar"`
	Role        string                 `json:"role"`
	Description string                 `json:"description"`
	Personality string                 `json:"personality"`
	Skills      []models.AgentSkill    `json:"skills"`
	Meta        map[string]interface{} `json:"meta"`
}

// AgentPatch is a partial agent update. Absent fields are left unchanged.
type AgentPatch struct {
	Name        models.Optional[string]                 `json:"name"`
	Avatar      models.Optional[string]                 `json:"avatar"`
	Role        models.Optional[string]                 `json:"role"`
	Description models.Optional[string]                 `json:"description"`
	Personality models.Optional[string]                 `json:"personality"`
	Skills      models.Optional[[]models.AgentSkill]    `json:"skills"`
	Meta        models.Optional[map[string]interface{}] `json:"meta"`
}

func (p AgentPatch) updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Name.Set {
		updates["name"] = strings.TrimSpace(p.Name.Value)
	}
	if p.Role.Set {
		updates["role"] = strings.TrimSpace(p.Role.Value)
	}
	if p.Avatar.Set {
		updates["avatar"] = p.Avatar.Value
	}
	if p.Description.Set {
		updates["description"] = p.Description.Value
	}
	if p.Personality.Set {
		updates["personality"] = p.Personality.Value
	}
	if p.Skills.Set {
		updates["skills"] = agentSkills(p.Skills.Value)
	}
	if p.Meta.Set {
		updates["meta"] = jsonMap(p.Meta.Value)
	}
	return updates
}

// AgentFilter narrows FindAll. Role matches case-insensitively as a substring.
type AgentFilter struct {
	Role string
}

// AgentStat holds per-agent counters shown next to a single agent.
type AgentStat struct {
	TotalTasks        int64 `json:"totalTasks"`
	CompletedTasks    int64 `json:"completedTasks"`
	InProgressTasks   int64 `json:"inProgressTasks"`
	PendingTasks      int64 `json:"pendingTasks"`
	TotalAchievements int64 `json:"totalAchievements"`
}

// AgentRepo persists agents.
type AgentRepo struct {
	db *gorm.DB
}

func (r *AgentRepo) Create(ctx context.Context, in AgentInput) (*models.Agent, error) {
	name := strings.TrimSpace(in.Name)
	if err := requiredField("name", name); err != nil {
		return nil, err
	}
	role := strings.TrimSpace(in.Role)
	if err := requiredField("role", role); err != nil {
		return nil, err
	}

	agent := models.Agent{
		ID:          newID(in.ID),
		Name:        name,
		Avatar:      in.Avatar,
		Role:        role,
		Description: in.Description,
		Personality: in.Personality,
		Skills:      agentSkills(in.Skills),
		Meta:        jsonMap(in.Meta),
	}
	if err := r.db.WithContext(ctx).Create(&agent).Error; err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	return r.FindByID(ctx, agent.ID)
}

func (r *AgentRepo) FindByID(ctx context.Context, id string) (*models.Agent, error) {
	agent, err := findOne[models.Agent](ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("finding agent %s: %w", id, err)
	}
	return normalizeAgent(agent), nil
}

// FindByName returns the agent with exactly this (trimmed) name.
func (r *AgentRepo) FindByName(ctx context.Context, name string) (*models.Agent, error) {
	var agents []models.Agent
	err := r.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).Limit(1).Find(&agents).Error
	if err != nil {
		return nil, fmt.Errorf("finding agent by name: %w", err)
	}
	if len(agents) == 0 {
		return nil, nil
	}
	return normalizeAgent(&agents[0]), nil
}

func (r *AgentRepo) FindAll(ctx context.Context, f AgentFilter, p Page) (*Result[models.Agent], error) {
	q := r.db.WithContext(ctx).Model(&models.Agent{})
	if role := strings.TrimSpace(f.Role); role != "" {
		q = q.Where(`LOWER(role) LIKE ? ESCAPE '\'`, containsPattern(role))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting agents: %w", err)
	}

	var agents []models.Agent
	if err := paginate(q.Order("created_at DESC").Order("id DESC"), p).Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	for i := range agents {
		normalizeAgent(&agents[i])
	}
	return &Result[models.Agent]{Items: agents, Total: total}, nil
}

// Update applies patch and returns the stored agent. An empty patch returns
// the agent unchanged.
func (r *AgentRepo) Update(ctx context.Context, id string, patch AgentPatch) (*models.Agent, error) {
	agent, err := r.FindByID(ctx, id)
	if err != nil || agent == nil {
		return nil, err
	}
	updates := patch.updates()
	if name, ok := updates["name"]; ok && name == "" {
		return nil, &FieldError{Field: "name", Message: "is required"}
	}
	if role, ok := updates["role"]; ok && role == "" {
		return nil, &FieldError{Field: "role", Message: "is required"}
	}
	if len(updates) == 0 {
		return agent, nil
	}

	if err := r.db.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating agent %s: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

// Delete removes the agent; its tasks, skills and achievements go with it.
func (r *AgentRepo) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := deleteOne[models.Agent](ctx, r.db, id)
	if err != nil {
		return false, fmt.Errorf("deleting agent %s: %w", id, err)
	}
	return ok, nil
}

// Exists reports whether an agent with id exists.
func (r *AgentRepo) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.db, &models.Agent{}, id)
}

// ExistingIDs returns the subset of ids that belong to stored agents.
func (r *AgentRepo) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []string
	if err := r.db.WithContext(ctx).Model(&models.Agent{}).Where("id IN ?", ids).Pluck("id", &rows).Error; err != nil {
		return nil, fmt.Errorf("checking agent ids: %w", err)
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

// Stats counts the agent's tasks by status and its achievements.
func (r *AgentRepo) Stats(ctx context.Context, id string) (*AgentStat, error) {
	var stat AgentStat
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Select(
			"COUNT(*) AS total_tasks, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_tasks, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress_tasks, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_tasks",
			models.TaskStatusCompleted, models.TaskStatusInProgress, models.TaskStatusPending,
		).
		Where("agent_id = ?", id).
		Scan(&stat).Error
	if err != nil {
		return nil, fmt.Errorf("counting tasks of agent %s: %w", id, err)
	}
	if err := r.db.WithContext(ctx).Model(&models.Achievement{}).Where("agent_id = ?", id).Count(&stat.TotalAchievements).Error; err != nil {
		return nil, fmt.Errorf("counting achievements of agent %s: %w", id, err)
	}
	return &stat, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a lower-cased LIKE pattern matching s literally as a
// substring.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func agentSkills(s []models.AgentSkill) datatypes.JSONSlice[models.AgentSkill] {
	if s == nil {
		return datatypes.JSONSlice[models.AgentSkill]{}
	}
	return datatypes.JSONSlice[models.AgentSkill](s)
}

// normalizeAgent replaces NULL JSON columns with empty values.
func normalizeAgent(a *models.Agent) *models.Agent {
	if a == nil {
		return nil
	}
	if a.Skills == nil {
		a.Skills = datatypes.JSONSlice[models.AgentSkill]{}
	}
	if a.Meta == nil {
		a.Meta = datatypes.JSONMap{}
	}
	return a
}
