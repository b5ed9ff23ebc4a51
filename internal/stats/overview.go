package stats

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/models"
)

// Summary holds the system-wide counters.
type Summary struct {
	TotalAgents       int64            `json:"totalAgents"`
	TotalTasks        int64            `json:"totalTasks"`
	CompletedTasks    int64            `json:"completedTasks"`
	InProgressTasks   int64            `json:"inProgressTasks"`
	PendingTasks      int64            `json:"pendingTasks"`
	CancelledTasks    int64            `json:"cancelledTasks"`
	CompletionRate    int              `json:"taskCompletionRate"`
	TotalProjects     int64            `json:"totalProjects"`
	ActiveProjects    int64            `json:"activeProjects"`
	CompletedProjects int64            `json:"completedProjects"`
	TotalSkills       int64            `json:"totalSkills"`
	TotalAchievements int64            `json:"totalAchievements"`
	TasksByStatus     map[string]int64 `json:"tasksByStatus"`
	ProjectsByStatus  map[string]int64 `json:"projectsByStatus"`
}

// AgentStats is one row of the per-agent breakdown.
type AgentStats struct {
	AgentID           string `json:"agentId"`
	AgentName         string `json:"agentName"`
	Role              string `json:"role"`
	TotalTasks        int64  `json:"totalTasks"`
	CompletedTasks    int64  `json:"completedTasks"`
	InProgressTasks   int64  `json:"inProgressTasks"`
	PendingTasks      int64  `json:"pendingTasks"`
	CompletionRate    int    `json:"completionRate"`
	TotalSkills       int64  `json:"totalSkills"`
	MasteredSkills    int64  `json:"masteredSkills"`
	TotalAchievements int64  `json:"totalAchievements"`
	RareAchievements  int64  `json:"rareAchievements"`
}

// Overview is the summary plus the per-agent breakdown.
type Overview struct {
	Summary
	AgentStats []AgentStats `json:"agentStats"`
}

type statusCount struct {
	Status string
	Count  int64
}

// Overview computes the system summary and per-agent breakdown in four
// queries.
func (a *Aggregator) Overview(ctx context.Context) (*Overview, error) {
	db := a.db.WithContext(ctx)
	ov := &Overview{
		Summary: Summary{
			TasksByStatus:    map[string]int64{},
			ProjectsByStatus: map[string]int64{},
		},
		AgentStats: []AgentStats{},
	}

	var taskCounts []statusCount
	if err := db.Model(&models.Task{}).Select("status, COUNT(*) AS count").Group("status").Scan(&taskCounts).Error; err != nil {
		return nil, fmt.Errorf("counting tasks by status: %w", err)
	}
	for _, c := range taskCounts {
		ov.TasksByStatus[c.Status] = c.Count
		ov.TotalTasks += c.Count
	}
	ov.CompletedTasks = ov.TasksByStatus[models.TaskStatusCompleted]
	ov.InProgressTasks = ov.TasksByStatus[models.TaskStatusInProgress]
	ov.PendingTasks = ov.TasksByStatus[models.TaskStatusPending]
	ov.CancelledTasks = ov.TasksByStatus[models.TaskStatusCancelled]
	ov.CompletionRate = CompletionRate(ov.CompletedTasks, ov.TotalTasks)

	var projectCounts []statusCount
	if err := db.Model(&models.Project{}).Select("status, COUNT(*) AS count").Group("status").Scan(&projectCounts).Error; err != nil {
		return nil, fmt.Errorf("counting projects by status: %w", err)
	}
	for _, c := range projectCounts {
		ov.ProjectsByStatus[c.Status] = c.Count
		ov.TotalProjects += c.Count
	}
	ov.ActiveProjects = ov.ProjectsByStatus[models.ProjectStatusActive]
	ov.CompletedProjects = ov.ProjectsByStatus[models.ProjectStatusCompleted]

	var totals struct {
		Agents       int64
		Skills       int64
		Achievements int64
	}
	err := db.Raw(`SELECT
		(SELECT COUNT(*) FROM agents) AS agents,
		(SELECT COUNT(*) FROM skills) AS skills,
		(SELECT COUNT(*) FROM achievements) AS achievements`).Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("counting totals: %w", err)
	}
	ov.TotalAgents = totals.Agents
	ov.TotalSkills = totals.Skills
	ov.TotalAchievements = totals.Achievements

	rows, err := a.agentBreakdown(db, nil)
	if err != nil {
		return nil, err
	}
	ov.AgentStats = rows
	return ov, nil
}

// AgentStatsFor returns the breakdown rows of the listed agents in one query.
// Unknown ids are skipped.
func (a *Aggregator) AgentStatsFor(ctx context.Context, agentIDs []string) (map[string]AgentStats, error) {
	out := map[string]AgentStats{}
	ids := dedupe(agentIDs)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := a.agentBreakdown(a.db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.AgentID] = row
	}
	return out, nil
}

// agentBreakdown joins pre-aggregated task, skill and achievement counts onto
// every agent, or only onto ids when given. Aggregating before the join keeps
// the row count at one per agent.
func (a *Aggregator) agentBreakdown(db *gorm.DB, ids []string) ([]AgentStats, error) {
	where, inner := "", ""
	if len(ids) > 0 {
		where = "WHERE a.id IN @ids"
		inner = "WHERE agent_id IN @ids "
	}
	query := `SELECT a.id AS agent_id, a.name AS agent_name, a.role AS role,
	COALESCE(t.total, 0) AS total_tasks,
	COALESCE(t.completed, 0) AS completed_tasks,
	COALESCE(t.in_progress, 0) AS in_progress_tasks,
	COALESCE(t.pending, 0) AS pending_tasks,
	COALESCE(s.total, 0) AS total_skills,
	COALESCE(s.mastered, 0) AS mastered_skills,
	COALESCE(ac.total, 0) AS total_achievements,
	COALESCE(ac.rare, 0) AS rare_achievements
FROM agents a
LEFT JOIN (
	SELECT agent_id, COUNT(*) AS total,
		SUM(CASE WHEN status = @completed THEN 1 ELSE 0 END) AS completed,
		SUM(CASE WHEN status = @in_progress THEN 1 ELSE 0 END) AS in_progress,
		SUM(CASE WHEN status = @pending THEN 1 ELSE 0 END) AS pending
	FROM tasks ` + inner + `GROUP BY agent_id
) t ON t.agent_id = a.id
LEFT JOIN (
	SELECT agent_id, COUNT(*) AS total,
		SUM(CASE WHEN status = @mastered THEN 1 ELSE 0 END) AS mastered
	FROM skills ` + inner + `GROUP BY agent_id
) s ON s.agent_id = a.id
LEFT JOIN (
	SELECT agent_id, COUNT(*) AS total,
		SUM(CASE WHEN rarity IN @rare THEN 1 ELSE 0 END) AS rare
	FROM achievements ` + inner + `GROUP BY agent_id
) ac ON ac.agent_id = a.id
` + where + `
ORDER BY a.created_at DESC, a.id DESC`

	var rows []AgentStats
	err := db.Raw(query, map[string]interface{}{
		"completed":   models.TaskStatusCompleted,
		"in_progress": models.TaskStatusInProgress,
		"pending":     models.TaskStatusPending,
		"mastered":    models.SkillStatusMastered,
		"rare":        []string{models.RarityRare, models.RarityEpic, models.RarityLegendary},
		"ids":         ids,
	}).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("computing agent breakdown: %w", err)
	}
	if rows == nil {
		rows = []AgentStats{}
	}
	for i := range rows {
		rows[i].CompletionRate = CompletionRate(rows[i].CompletedTasks, rows[i].TotalTasks)
	}
	return rows, nil
}

// IndexReport describes one index of a table.
type IndexReport struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// TableReport describes the size and indexes of one table.
type TableReport struct {
	Table    string        `json:"table"`
	RowCount int64         `json:"rowCount"`
	Indexes  []IndexReport `json:"indexes"`
}

// PerformanceReport lists row counts and indexes per table.
type PerformanceReport struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Driver      string        `json:"driver"`
	Tables      []TableReport `json:"tables"`
}

// PerformanceReport inspects every table's size and indexes.
func (a *Aggregator) PerformanceReport(ctx context.Context) (*PerformanceReport, error) {
	db := a.db.WithContext(ctx)
	report := &PerformanceReport{
		GeneratedAt: time.Now().UTC(),
		Driver:      db.Dialector.Name(),
		Tables:      []TableReport{},
	}

	for _, model := range models.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parsing model: %w", err)
		}
		table := stmt.Schema.Table

		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}

		indexes, err := db.Migrator().GetIndexes(model)
		if err != nil {
			return nil, fmt.Errorf("listing indexes of %s: %w", table, err)
		}
		tr := TableReport{Table: table, RowCount: count, Indexes: []IndexReport{}}
		for _, idx := range indexes {
			unique, _ := idx.Unique()
			tr.Indexes = append(tr.Indexes, IndexReport{Name: idx.Name(), Columns: idx.Columns(), Unique: unique})
		}
		report.Tables = append(report.Tables, tr)
	}
	return report, nil
}
