// Package stats builds the aggregate views of the dashboard: per-agent full
// details and the system overview. Every view is assembled from a fixed
// number of queries regardless of how many agents or tasks exist.
package stats

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/models"
)

// CompletionRate returns round(completed/total*100) with halves rounding up,
// or 0 when total is 0.
func CompletionRate(completed, total int64) int {
	if total <= 0 {
		return 0
	}
	return int((completed*200 + total) / (2 * total))
}

// DetailStats are the counters derived from an agent's own rows.
type DetailStats struct {
	TotalTasks        int64 `json:"totalTasks"`
	CompletedTasks    int64 `json:"completedTasks"`
	InProgressTasks   int64 `json:"inProgressTasks"`
	PendingTasks      int64 `json:"pendingTasks"`
	CompletionRate    int   `json:"completionRate"`
	TotalSkills       int64 `json:"totalSkills"`
	MasteredSkills    int64 `json:"masteredSkills"`
	LearningSkills    int64 `json:"learningSkills"`
	TotalAchievements int64 `json:"totalAchievements"`
	RareAchievements  int64 `json:"rareAchievements"`
}

// AgentDetails is an agent merged with everything it owns. Skills carries the
// skill records; the inline summary stays available as SkillSummary.
type AgentDetails struct {
	models.Agent
	SkillSummary []models.AgentSkill  `json:"skill_summary"`
	Tasks        []models.Task        `json:"tasks"`
	Skills       []models.Skill       `json:"skills"`
	Achievements []models.Achievement `json:"achievements"`
	Projects     []models.Project     `json:"projects"`
	Stats        DetailStats          `json:"stats"`
}

// Aggregator runs the aggregate queries.
type Aggregator struct {
	db *gorm.DB
}

// New creates an Aggregator on db.
func New(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// AgentFullDetails loads one agent with its tasks, skills, achievements and
// the projects its tasks reference. It returns (nil, nil) when the agent does
// not exist.
func (a *Aggregator) AgentFullDetails(ctx context.Context, agentID string) (*AgentDetails, error) {
	details, err := a.AgentsFullDetails(ctx, []string{agentID})
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, nil
	}
	return &details[0], nil
}

// AgentsFullDetails is the batched form of AgentFullDetails. Unknown ids are
// skipped; results are ordered newest agent first. It issues at most five
// queries.
func (a *Aggregator) AgentsFullDetails(ctx context.Context, agentIDs []string) ([]AgentDetails, error) {
	out := []AgentDetails{}
	ids := dedupe(agentIDs)
	if len(ids) == 0 {
		return out, nil
	}
	db := a.db.WithContext(ctx)

	var agents []models.Agent
	if err := db.Where("id IN ?", ids).Order("created_at DESC").Order("id DESC").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("loading agents: %w", err)
	}
	if len(agents) == 0 {
		return out, nil
	}
	found := make([]string, 0, len(agents))
	for _, ag := range agents {
		found = append(found, ag.ID)
	}

	var tasks []models.Task
	if err := db.Where("agent_id IN ?", found).Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	var skills []models.Skill
	if err := db.Where("agent_id IN ?", found).Order("proficiency DESC").Order("created_at DESC").Order("id DESC").Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("loading skills: %w", err)
	}
	var achievements []models.Achievement
	if err := db.Where("agent_id IN ?", found).Order("earned_at DESC").Order("id DESC").Find(&achievements).Error; err != nil {
		return nil, fmt.Errorf("loading achievements: %w", err)
	}

	projectIDs := make([]string, 0)
	seen := map[string]bool{}
	for _, t := range tasks {
		if t.ProjectID != nil && !seen[*t.ProjectID] {
			seen[*t.ProjectID] = true
			projectIDs = append(projectIDs, *t.ProjectID)
		}
	}
	projectsByID := map[string]models.Project{}
	var projectOrder []string
	if len(projectIDs) > 0 {
		var projects []models.Project
		if err := db.Where("id IN ?", projectIDs).Order("created_at DESC").Order("id DESC").Find(&projects).Error; err != nil {
			return nil, fmt.Errorf("loading projects: %w", err)
		}
		for _, p := range projects {
			projectsByID[p.ID] = normalizeProject(p)
			projectOrder = append(projectOrder, p.ID)
		}
	}

	byAgent := make(map[string]*AgentDetails, len(agents))
	for _, ag := range agents {
		out = append(out, newDetails(ag))
	}
	for i := range out {
		byAgent[out[i].ID] = &out[i]
	}

	agentProjects := map[string]map[string]bool{}
	for _, t := range tasks {
		d := byAgent[t.AgentID]
		if t.Meta == nil {
			t.Meta = map[string]interface{}{}
		}
		d.Tasks = append(d.Tasks, t)
		if t.ProjectID != nil {
			if agentProjects[t.AgentID] == nil {
				agentProjects[t.AgentID] = map[string]bool{}
			}
			agentProjects[t.AgentID][*t.ProjectID] = true
		}
	}
	for _, s := range skills {
		if s.Meta == nil {
			s.Meta = map[string]interface{}{}
		}
		byAgent[s.AgentID].Skills = append(byAgent[s.AgentID].Skills, s)
	}
	for _, ac := range achievements {
		if ac.Meta == nil {
			ac.Meta = map[string]interface{}{}
		}
		byAgent[ac.AgentID].Achievements = append(byAgent[ac.AgentID].Achievements, ac)
	}
	for i := range out {
		d := &out[i]
		for _, pid := range projectOrder {
			if agentProjects[d.ID][pid] {
				d.Projects = append(d.Projects, projectsByID[pid])
			}
		}
		d.Stats = detailStats(d)
	}
	return out, nil
}

func newDetails(agent models.Agent) AgentDetails {
	if agent.Meta == nil {
		agent.Meta = map[string]interface{}{}
	}
	summary := []models.AgentSkill(agent.Skills)
	if summary == nil {
		summary = []models.AgentSkill{}
	}
	return AgentDetails{
		Agent:        agent,
		SkillSummary: summary,
		Tasks:        []models.Task{},
		Skills:       []models.Skill{},
		Achievements: []models.Achievement{},
		Projects:     []models.Project{},
	}
}

func detailStats(d *AgentDetails) DetailStats {
	var st DetailStats
	st.TotalTasks = int64(len(d.Tasks))
	for _, t := range d.Tasks {
		switch t.Status {
		case models.TaskStatusCompleted:
			st.CompletedTasks++
		case models.TaskStatusInProgress:
			st.InProgressTasks++
		case models.TaskStatusPending:
			st.PendingTasks++
		}
	}
	st.CompletionRate = CompletionRate(st.CompletedTasks, st.TotalTasks)

	st.TotalSkills = int64(len(d.Skills))
	for _, s := range d.Skills {
		switch s.Status {
		case models.SkillStatusMastered:
			st.MasteredSkills++
		case models.SkillStatusLearning:
			st.LearningSkills++
		}
	}

	st.TotalAchievements = int64(len(d.Achievements))
	for _, ac := range d.Achievements {
		if models.IsRare(ac.Rarity) {
			st.RareAchievements++
		}
	}
	return st
}

func normalizeProject(p models.Project) models.Project {
	if p.TeamMembers == nil {
		p.TeamMembers = []string{}
	}
	if p.Meta == nil {
		p.Meta = map[string]interface{}{}
	}
	return p
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
