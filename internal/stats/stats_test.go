package stats

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/store"
)

func setupStats(t *testing.T) (*gorm.DB, *store.Store, *Aggregator) {
	t.Helper()
	db, err := models.InitDB(":memory:", models.QueryCounter{})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { models.Close(db) })
	return db, store.New(db), New(db)
}

// seedAgents creates n agents, each with tasksPer tasks spread over statuses,
// two skills, two achievements and a shared project.
func seedAgents(t *testing.T, s *store.Store, n, tasksPer int) []string {
	t.Helper()
	ctx := context.Background()
	project, err := s.Projects.Create(ctx, store.ProjectInput{Name: fmt.Sprintf("project-%d", n)})
	if err != nil {
		t.Fatalf("creating project: %v", err)
	}

	var ids []string
	for i := 0; i < n; i++ {
		agent, err := s.Agents.Create(ctx, store.AgentInput{Name: fmt.Sprintf("agent-%d", i), Role: "worker"})
		if err != nil {
			t.Fatalf("creating agent: %v", err)
		}
		ids = append(ids, agent.ID)

		inputs := make([]store.TaskInput, 0, tasksPer)
		for j := 0; j < tasksPer; j++ {
			in := store.TaskInput{
				Title:   fmt.Sprintf("task-%d-%d", i, j),
				AgentID: agent.ID,
				Status:  models.TaskStatuses[j%len(models.TaskStatuses)],
			}
			if j == 0 {
				in.ProjectID = &project.ID
			}
			inputs = append(inputs, in)
		}
		if _, err := s.Tasks.BatchCreate(ctx, inputs); err != nil {
			t.Fatalf("creating tasks: %v", err)
		}

		s.Skills.Create(ctx, store.SkillInput{AgentID: agent.ID, SkillName: "Go", Proficiency: 8, Status: models.SkillStatusMastered})
		s.Skills.Create(ctx, store.SkillInput{AgentID: agent.ID, SkillName: "SQL", Proficiency: 3})
		s.Achievements.Create(ctx, store.AchievementInput{AgentID: agent.ID, BadgeName: "starter"})
		s.Achievements.Create(ctx, store.AchievementInput{AgentID: agent.ID, BadgeName: "legend", Rarity: models.RarityEpic})
	}
	return ids
}

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		completed, total int64
		want             int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{1, 200, 1},
		{1, 201, 0},
		{7, 7, 100},
	}
	for _, tt := range tests {
		if got := CompletionRate(tt.completed, tt.total); got != tt.want {
			t.Errorf("CompletionRate(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestAgentFullDetails(t *testing.T) {
	_, s, agg := setupStats(t)
	ids := seedAgents(t, s, 1, 4)

	d, err := agg.AgentFullDetails(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("AgentFullDetails: %v", err)
	}
	if d == nil {
		t.Fatal("expected details, got nil")
	}

	if len(d.Tasks) != 4 || len(d.Skills) != 2 || len(d.Achievements) != 2 || len(d.Projects) != 1 {
		t.Fatalf("unexpected sizes: tasks=%d skills=%d achievements=%d projects=%d",
			len(d.Tasks), len(d.Skills), len(d.Achievements), len(d.Projects))
	}
	if d.Skills[0].SkillName != "Go" {
		t.Errorf("skills should be ordered by proficiency, got %q first", d.Skills[0].SkillName)
	}

	want := DetailStats{
		TotalTasks: 4, CompletedTasks: 1, InProgressTasks: 1, PendingTasks: 1, CompletionRate: 25,
		TotalSkills: 2, MasteredSkills: 1, LearningSkills: 1,
		TotalAchievements: 2, RareAchievements: 1,
	}
	if d.Stats != want {
		t.Errorf("stats: got %+v, want %+v", d.Stats, want)
	}
}

func TestAgentFullDetails_Missing(t *testing.T) {
	_, _, agg := setupStats(t)

	d, err := agg.AgentFullDetails(context.Background(), "nope")
	if err != nil || d != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", d, err)
	}
}

func TestAgentFullDetails_ConstantQueryCount(t *testing.T) {
	count := func(n, tasksPer int) int64 {
		_, s, agg := setupStats(t)
		ids := seedAgents(t, s, n, tasksPer)

		ctx, qc := models.WithQueryCount(context.Background())
		if _, err := agg.AgentFullDetails(ctx, ids[0]); err != nil {
			t.Fatalf("AgentFullDetails: %v", err)
		}
		return qc.Load()
	}

	small := count(1, 1)
	large := count(10, 100)
	if small != large {
		t.Errorf("query count grew with data: %d vs %d", small, large)
	}
	if large > 5 {
		t.Errorf("expected at most 5 queries, got %d", large)
	}
}

func TestAgentsFullDetails_Batched(t *testing.T) {
	_, s, agg := setupStats(t)
	ids := seedAgents(t, s, 6, 5)

	ctx, qc := models.WithQueryCount(context.Background())
	details, err := agg.AgentsFullDetails(ctx, append(ids, "unknown", ids[0]))
	if err != nil {
		t.Fatalf("AgentsFullDetails: %v", err)
	}
	if len(details) != 6 {
		t.Fatalf("details: got %d, want 6", len(details))
	}
	if got := qc.Load(); got > 5 {
		t.Errorf("expected at most 5 queries for 6 agents, got %d", got)
	}
	for _, d := range details {
		if len(d.Tasks) != 5 {
			t.Errorf("agent %s: got %d tasks, want 5", d.Name, len(d.Tasks))
		}
		for _, task := range d.Tasks {
			if task.AgentID != d.ID {
				t.Errorf("task %s attached to wrong agent", task.ID)
			}
		}
		if len(d.Projects) != 1 {
			t.Errorf("agent %s: got %d projects, want 1", d.Name, len(d.Projects))
		}
	}
}

func TestOverview(t *testing.T) {
	_, s, agg := setupStats(t)
	seedAgents(t, s, 3, 4)

	ov, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TotalAgents != 3 || ov.TotalTasks != 12 || ov.CompletedTasks != 3 {
		t.Errorf("unexpected counts: %+v", ov.Summary)
	}
	if ov.CompletionRate != 25 {
		t.Errorf("completion rate: got %d, want 25", ov.CompletionRate)
	}
	if ov.TotalSkills != 6 || ov.TotalAchievements != 6 || ov.TotalProjects != 1 {
		t.Errorf("unexpected totals: %+v", ov.Summary)
	}
	if len(ov.AgentStats) != 3 {
		t.Fatalf("agent stats: got %d rows, want 3", len(ov.AgentStats))
	}
	row := ov.AgentStats[0]
	if row.TotalTasks != 4 || row.TotalSkills != 2 || row.MasteredSkills != 1 || row.TotalAchievements != 2 || row.RareAchievements != 1 {
		t.Errorf("unexpected agent row: %+v", row)
	}
}

func TestOverview_ConstantQueryCount(t *testing.T) {
	count := func(n, tasksPer int) int64 {
		_, s, agg := setupStats(t)
		seedAgents(t, s, n, tasksPer)

		ctx, qc := models.WithQueryCount(context.Background())
		if _, err := agg.Overview(ctx); err != nil {
			t.Fatalf("Overview: %v", err)
		}
		return qc.Load()
	}

	if small, large := count(1, 1), count(20, 50); small != 4 || large != 4 {
		t.Errorf("expected 4 queries at both scales, got %d and %d", small, large)
	}
}

func TestOverview_Empty(t *testing.T) {
	_, _, agg := setupStats(t)

	ov, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TotalTasks != 0 || ov.CompletionRate != 0 || ov.AgentStats == nil {
		t.Errorf("unexpected empty overview: %+v", ov)
	}
}

func TestPerformanceReport(t *testing.T) {
	_, s, agg := setupStats(t)
	seedAgents(t, s, 2, 3)

	report, err := agg.PerformanceReport(context.Background())
	if err != nil {
		t.Fatalf("PerformanceReport: %v", err)
	}
	if len(report.Tables) != len(models.All()) {
		t.Fatalf("tables: got %d, want %d", len(report.Tables), len(models.All()))
	}

	var tasks *TableReport
	for i := range report.Tables {
		if report.Tables[i].Table == "tasks" {
			tasks = &report.Tables[i]
		}
	}
	if tasks == nil {
		t.Fatal("tasks table missing from report")
	}
	if tasks.RowCount != 6 {
		t.Errorf("tasks row count: got %d, want 6", tasks.RowCount)
	}
	found := false
	for _, idx := range tasks.Indexes {
		if idx.Name == "idx_tasks_agent_status" {
			found = true
		}
	}
	if !found {
		t.Errorf("idx_tasks_agent_status missing from %+v", tasks.Indexes)
	}
}

func TestAgentStatsFor(t *testing.T) {
	_, s, agg := setupStats(t)
	ids := seedAgents(t, s, 3, 4)

	ctx, qc := models.WithQueryCount(context.Background())
	rows, err := agg.AgentStatsFor(ctx, []string{ids[0], ids[2], "missing"})
	if err != nil {
		t.Fatalf("AgentStatsFor: %v", err)
	}
	if qc.Load() != 1 {
		t.Errorf("expected a single query, got %d", qc.Load())
	}
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	row, ok := rows[ids[2]]
	if !ok {
		t.Fatalf("missing row for %s", ids[2])
	}
	if row.TotalTasks != 4 || row.CompletedTasks != 1 || row.CompletionRate != 25 {
		t.Errorf("unexpected row: %+v", row)
	}
	if _, ok := rows[ids[1]]; ok {
		t.Error("agent not asked for should be absent")
	}
}
